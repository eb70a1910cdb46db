package agents

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestLoadGlobalConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadGlobalConfig(DefaultConfigPath(dir), dir)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, DefaultMaxIterations, cfg.Agent.MaxIterations)
	assert.True(t, cfg.Features.EnableReactLoop)
	assert.NoError(t, cfg.Validate())
}

func TestLoadGlobalConfigOverridesAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := DefaultConfigPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: offline
  timeout: 5s
agent:
  max_iterations: 3
memory:
  db_path: state/mem.db
safety:
  confirmation_phrase: DO IT
  protected_branches: [release]
`), 0o644))

	cfg, err := LoadGlobalConfig(path, dir)
	require.NoError(t, err)
	assert.Equal(t, ProviderOffline, cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, filepath.Join(dir, "state", "mem.db"), cfg.Memory.DBPath)
	assert.Equal(t, "DO IT", cfg.Safety.ConfirmationPhrase)
	assert.Equal(t, []string{"release"}, cfg.Safety.ProtectedBranches)
	assert.Equal(t, "codellama", cfg.LLM.Model, "unset keys keep defaults")
}

func TestSaveGlobalConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.LLM.Model = "qwen2.5-coder"
	cfg.LLM.APIKey = "secret"
	path := DefaultConfigPath(dir)
	require.NoError(t, SaveGlobalConfig(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadGlobalConfig(path, dir)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-coder", loaded.LLM.Model)
}

func TestApplyEnv(t *testing.T) {
	t.Run("gemini key switches provider", func(t *testing.T) {
		cfg := DefaultConfig("")
		cfg.ApplyEnv(envMap(map[string]string{"GEMINI_API_KEY": "k"}))
		assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
		assert.Equal(t, "k", cfg.LLM.APIKey)
		assert.Empty(t, cfg.LLM.Model)
	})
	t.Run("explicit provider wins", func(t *testing.T) {
		cfg := DefaultConfig("")
		cfg.ApplyEnv(envMap(map[string]string{"GEMINI_API_KEY": "k", "CODEBUDDY_PROVIDER": "Ollama"}))
		assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
		assert.Equal(t, "codellama", cfg.LLM.Model)
	})
	t.Run("model endpoint and debug", func(t *testing.T) {
		cfg := DefaultConfig("")
		cfg.ApplyEnv(envMap(map[string]string{
			"CODEBUDDY_MODEL": "llama3",
			"OLLAMA_ENDPOINT": "http://gpu:11434",
			"DEBUG_MODE":      "true",
		}))
		assert.Equal(t, "llama3", cfg.LLM.Model)
		assert.Equal(t, "http://gpu:11434", cfg.LLM.Endpoint)
		assert.True(t, cfg.LLM.Debug)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig("")
	cfg.LLM.Provider = "openai"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig("")
	cfg.Agent.MaxIterations = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadRuleset(t *testing.T) {
	dir := t.TempDir()
	rules, err := LoadRuleset(DefaultRulesPath(dir))
	require.NoError(t, err)
	assert.Empty(t, rules.Prompt())

	path := DefaultRulesPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("coding_standards:\n  - use type hints\nbest_practices:\n  - write tests\n"), 0o644))
	rules, err = LoadRuleset(path)
	require.NoError(t, err)
	assert.Equal(t, "Project rules:\n- use type hints\n- write tests\n", rules.Prompt())
}
