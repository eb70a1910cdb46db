package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/app/runtime"
	"github.com/lexcodex/codebuddy/framework"
)

var (
	cfgFile   string
	workspace string
	verbose   bool
	provider  string
	modelName string

	globalCfg *agents.GlobalConfig
)

// Execute is the entry point for the CLI.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd wires the cobra tree. Without a subcommand it starts the chat.
func NewRootCmd() *cobra.Command {
	chat := newChatCmd()
	root := &cobra.Command{
		Use:           "codebuddy",
		Short:         "Conversational coding assistant for Python workspaces",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		RunE: chat.RunE,
	}
	root.Flags().AddFlagSet(chat.Flags())
	root.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace directory")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to codebuddy config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	root.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider (ollama, gemini, offline)")
	root.PersistentFlags().StringVar(&modelName, "model", "", "Model name")

	root.AddCommand(
		chat,
		newRunCmd(),
		newServeCmd(),
		newToolsCmd(),
		newDoctorCmd(),
		newMemoryCmd(),
		newApprovalsCmd(),
		newConfigCmd(),
	)
	return root
}

// loadConfig resolves the workspace, loads .env and config.yaml, then lets
// the environment and the flags override the file.
func loadConfig() error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	if err := godotenv.Load(filepath.Join(ws, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	if cfgFile == "" {
		cfgFile = agents.DefaultConfigPath(ws)
	}
	cfg, err := agents.LoadGlobalConfig(cfgFile, ws)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if provider != "" {
		cfg.LLM.Provider = provider
	}
	if modelName != "" {
		cfg.LLM.Model = modelName
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	globalCfg = cfg
	return nil
}

// resolveWorkspace makes the workspace flag absolute, defaulting to cwd.
func resolveWorkspace() (string, error) {
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		workspace = wd
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}
	workspace = abs
	return workspace, nil
}

// newRuntime builds the runtime for the loaded config with the given
// approval surface.
func newRuntime(ctx context.Context, sessionID string, approver framework.Approver) (*runtime.Runtime, error) {
	return runtime.New(ctx, runtime.Config{
		Workspace: workspace,
		Global:    globalCfg,
		SessionID: sessionID,
		Approver:  approver,
	})
}
