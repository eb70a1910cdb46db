package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigKeysCoverSchema(t *testing.T) {
	for _, key := range []string{"llm.provider", "llm.timeout", "features.direct_path", "safety.critical_dirs", "safety.approval_timeout", "logging.level"} {
		assert.Contains(t, configKeys, key)
	}
	assert.NotContains(t, configKeys, "llm.api_key")
	assert.NoError(t, lookupConfigKey("memory"))
	err := lookupConfigKey("llm.temprature")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm, logging, memory, safety, tools, version")
}

func TestSetConfigValueConvertsByField(t *testing.T) {
	data := map[string]interface{}{
		"llm": map[string]interface{}{"provider": "ollama"},
	}
	require.NoError(t, setConfigValue(data, "llm.provider", "offline"))
	require.NoError(t, setConfigValue(data, "llm.model", "7"))
	require.NoError(t, setConfigValue(data, "llm.timeout", "90s"))
	require.NoError(t, setConfigValue(data, "llm.temperature", "0.5"))
	require.NoError(t, setConfigValue(data, "memory.recent_turns", "10"))
	require.NoError(t, setConfigValue(data, "features.llm_lessons", "TRUE"))
	require.NoError(t, setConfigValue(data, "safety.critical_dirs", "[/, /etc, 'C:\\Windows']"))

	for key, want := range map[string]interface{}{
		"llm.provider":         "offline",
		"llm.model":            "7",
		"llm.timeout":          "1m30s",
		"llm.temperature":      0.5,
		"memory.recent_turns":  int64(10),
		"features.llm_lessons": true,
		"safety.critical_dirs": []string{"/", "/etc", `C:\Windows`},
	} {
		got, ok := getConfigValue(data, key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok := getConfigValue(data, "llm.provider.name")
	assert.False(t, ok)
}

func TestSetConfigValueRejectsBadInput(t *testing.T) {
	data := map[string]interface{}{}
	for key, raw := range map[string]string{
		"llm.max_tokens":       "lots",
		"llm.timeout":          "30",
		"features.direct_path": "yes please",
		"llm.temprature":       "0.2",
		"llm":                  "offline",
	} {
		assert.Error(t, setConfigValue(data, key, raw), key)
	}
	assert.Empty(t, data)
}

// execute runs the CLI against a workspace and returns stdout.
func execute(t *testing.T, ws string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("CODEBUDDY_PROVIDER", "")
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(append([]string{"--workspace", ws}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestConfigCommands(t *testing.T) {
	ws := t.TempDir()

	out, err := execute(t, ws, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(ws, ".codebuddy", "config.yaml"))

	_, err = execute(t, ws, "config", "init")
	assert.Error(t, err)

	_, err = execute(t, ws, "config", "set", "llm.provider", "offline")
	require.NoError(t, err)
	out, err = execute(t, ws, "config", "get", "llm.provider")
	require.NoError(t, err)
	assert.Equal(t, "offline\n", out)

	_, err = execute(t, ws, "config", "set", "agent.max_iterations", "0")
	assert.Error(t, err)
	out, err = execute(t, ws, "config", "get", "agent.max_iterations")
	require.NoError(t, err)
	assert.Equal(t, "5\n", out)

	_, err = execute(t, ws, "config", "set", "llm.modle", "tiny")
	assert.ErrorContains(t, err, "unknown config key")
	_, err = execute(t, ws, "config", "get", "llm.modle")
	assert.ErrorContains(t, err, "unknown config key")

	out, err = execute(t, ws, "--model", "tiny", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "model: tiny")
	assert.NotContains(t, out, "api_key")
}

func TestRunToolsAndMemoryCommands(t *testing.T) {
	ws := t.TempDir()

	out, err := execute(t, ws, "tools")
	require.NoError(t, err)
	assert.Contains(t, out, "write_file")

	out, err = execute(t, ws, "--provider", "offline", "run", `write_file(filepath="hello.py", content="print('hi')")`)
	require.NoError(t, err)
	assert.Contains(t, out, "hello.py")
	assert.FileExists(t, filepath.Join(ws, "hello.py"))

	out, err = execute(t, ws, "memory", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "turns=1")

	out, err = execute(t, ws, "approvals")
	require.NoError(t, err)
	assert.Contains(t, out, "No approval records.")
}
