package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/framework/safety"
)

const configDirName = ".codebuddy"

// Supported LLM providers.
const (
	ProviderOllama  = "ollama"
	ProviderGemini  = "gemini"
	ProviderOffline = "offline"
)

// ConfigDir returns the workspace-local configuration directory.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, configDirName)
}

// DefaultConfigPath returns .codebuddy/config.yaml within the workspace.
func DefaultConfigPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "config.yaml")
}

// GlobalConfig matches .codebuddy/config.yaml inside the workspace.
type GlobalConfig struct {
	Version  string                  `yaml:"version"`
	LLM      LLMConfig               `yaml:"llm"`
	Features FeatureFlags            `yaml:"features"`
	Agent    AgentConfig             `yaml:"agent"`
	Safety   SafetyConfig            `yaml:"safety"`
	Memory   MemoryConfig            `yaml:"memory"`
	Tools    ToolsConfig             `yaml:"tools"`
	Logging  framework.LoggingConfig `yaml:"logging"`
}

// LLMConfig selects and tunes the language model.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Endpoint    string        `yaml:"endpoint,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	// APIKey only ever comes from the environment.
	APIKey string `yaml:"-"`
	Debug  bool   `yaml:"debug"`
}

// FeatureFlags toggles runtime capabilities.
type FeatureFlags struct {
	EnableMemory          bool `yaml:"enable_memory"`
	EnableReactLoop       bool `yaml:"enable_react_loop"`
	EnableIntentInference bool `yaml:"enable_intent_inference"`
	DirectPath            bool `yaml:"direct_path"`
	LLMLessons            bool `yaml:"llm_lessons"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// SafetyConfig extends the classifier policy with gate settings.
type SafetyConfig struct {
	safety.Policy `yaml:",inline"`
	// AutoApprove lists tools approved without asking below Critical.
	AutoApprove     []string      `yaml:"auto_approve,omitempty"`
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`
}

// MemoryConfig controls conversation memory.
type MemoryConfig struct {
	DBPath              string  `yaml:"db_path"`
	RecentTurns         int     `yaml:"recent_turns"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	Python            string        `yaml:"python"`
	TestCommand       []string      `yaml:"test_command,omitempty"`
	ExecTimeout       time.Duration `yaml:"exec_timeout"`
	GitTimeout        time.Duration `yaml:"git_timeout"`
	GitNetworkTimeout time.Duration `yaml:"git_network_timeout"`
	TrashDir          string        `yaml:"trash_dir"`
	BackupOnWrite     bool          `yaml:"backup_on_write"`
}

// DefaultConfig returns the built-in configuration for a workspace.
func DefaultConfig(workspace string) *GlobalConfig {
	dir := ConfigDir(workspace)
	return &GlobalConfig{
		Version: "1.0.0",
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Model:       "codellama",
			Timeout:     30 * time.Second,
			Temperature: 0.1,
			MaxTokens:   1024,
		},
		Features: FeatureFlags{
			EnableMemory:          true,
			EnableReactLoop:       true,
			EnableIntentInference: true,
			DirectPath:            true,
		},
		Agent:  AgentConfig{MaxIterations: DefaultMaxIterations},
		Safety: SafetyConfig{Policy: safety.DefaultPolicy(), ApprovalTimeout: 5 * time.Minute},
		Memory: MemoryConfig{
			DBPath:              filepath.Join(dir, "memory.db"),
			RecentTurns:         5,
			SimilarityThreshold: 0.6,
		},
		Tools: ToolsConfig{
			Python:            "python3",
			ExecTimeout:       30 * time.Second,
			GitTimeout:        30 * time.Second,
			GitNetworkTimeout: 60 * time.Second,
			TrashDir:          filepath.Join(dir, "trash"),
		},
		Logging: framework.LoggingConfig{Level: "info", File: filepath.Join(dir, "logs", "codebuddy.log")},
	}
}

// LoadGlobalConfig loads the config over the defaults. A missing file
// yields the defaults.
func LoadGlobalConfig(path, workspace string) (*GlobalConfig, error) {
	cfg := DefaultConfig(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.resolvePaths(workspace)
	return cfg, nil
}

// SaveGlobalConfig writes the config to disk.
func SaveGlobalConfig(path string, cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("config missing")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *GlobalConfig) resolvePaths(workspace string) {
	c.Memory.DBPath = expandPath(c.Memory.DBPath, workspace)
	c.Tools.TrashDir = expandPath(c.Tools.TrashDir, workspace)
	c.Logging.File = expandPath(c.Logging.File, workspace)
}

// ApplyEnv overlays environment variables: GEMINI_API_KEY, CODEBUDDY_MODEL,
// CODEBUDDY_PROVIDER, OLLAMA_ENDPOINT and DEBUG_MODE. A Gemini key with no
// explicit provider switches the provider to gemini.
func (c *GlobalConfig) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	provider, providerSet := lookup("CODEBUDDY_PROVIDER")
	if key, ok := lookup("GEMINI_API_KEY"); ok && key != "" {
		c.LLM.APIKey = key
		if !providerSet {
			c.LLM.Provider = ProviderGemini
			if c.LLM.Model == DefaultConfig("").LLM.Model {
				c.LLM.Model = ""
			}
		}
	}
	if providerSet && provider != "" {
		c.LLM.Provider = strings.ToLower(provider)
	}
	if model, ok := lookup("CODEBUDDY_MODEL"); ok && model != "" {
		c.LLM.Model = model
	}
	if endpoint, ok := lookup("OLLAMA_ENDPOINT"); ok && endpoint != "" {
		c.LLM.Endpoint = endpoint
	}
	if debug, ok := lookup("DEBUG_MODE"); ok {
		if on, err := strconv.ParseBool(debug); err == nil && on {
			c.LLM.Debug = true
			c.Logging.Level = "debug"
		}
	}
}

// Validate reports settings the runtime cannot work with.
func (c *GlobalConfig) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama, ProviderGemini, ProviderOffline:
	default:
		return fmt.Errorf("llm.provider %q: want ollama, gemini or offline", c.LLM.Provider)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be within [0,1]")
	}
	return nil
}

// expandPath resolves ~ and workspace-relative paths into absolute paths while
// leaving already absolute entries untouched.
func expandPath(path, workspace string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Join(workspace, path)
}
