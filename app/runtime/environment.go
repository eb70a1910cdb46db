package runtime

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/llm"
)

// BinaryReport describes one external program the tools shell out to.
type BinaryReport struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ModelReport surfaces the health of the configured provider.
type ModelReport struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint,omitempty"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// EnvironmentReport aggregates the doctor checks.
type EnvironmentReport struct {
	Workspace  string         `json:"workspace"`
	ConfigPath string         `json:"config_path"`
	Model      ModelReport    `json:"model"`
	Binaries   []BinaryReport `json:"binaries"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (r EnvironmentReport) Healthy() bool {
	if !r.Model.Healthy {
		return false
	}
	for _, b := range r.Binaries {
		if b.Error != "" {
			return false
		}
	}
	return true
}

// CheckEnvironment checks the model provider and the python and git
// binaries so the doctor command can suggest fixes.
func CheckEnvironment(ctx context.Context, workspace string, cfg *agents.GlobalConfig) EnvironmentReport {
	if cfg == nil {
		cfg = agents.DefaultConfig(workspace)
	}
	report := EnvironmentReport{
		Workspace:  workspace,
		ConfigPath: agents.DefaultConfigPath(workspace),
		Model:      checkModel(ctx, cfg.LLM),
		Timestamp:  time.Now().UTC(),
	}
	python := cfg.Tools.Python
	if python == "" {
		python = "python3"
	}
	report.Binaries = []BinaryReport{
		checkBinary(ctx, python, "--version"),
		checkBinary(ctx, "git", "--version"),
	}
	return report
}

func checkModel(ctx context.Context, cfg agents.LLMConfig) ModelReport {
	report := ModelReport{Provider: cfg.Provider, Model: cfg.Model, Endpoint: cfg.Endpoint}
	switch cfg.Provider {
	case agents.ProviderOffline:
		report.Healthy = true
	case agents.ProviderGemini:
		if cfg.APIKey == "" {
			report.Error = "GEMINI_API_KEY is not set"
			return report
		}
		report.Healthy = true
	default:
		client := llm.NewClient(cfg.Endpoint, cfg.Model)
		report.Endpoint = client.Endpoint
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			report.Error = err.Error()
			return report
		}
		report.Healthy = true
	}
	return report
}

func checkBinary(ctx context.Context, name string, versionArg string) BinaryReport {
	report := BinaryReport{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Path = path
	runCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(runCtx, path, versionArg).CombinedOutput()
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Version = strings.TrimSpace(string(out))
	return report
}

func openEventLog(path string) (*framework.JSONFileTelemetry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return framework.NewJSONFileTelemetry(path)
}
