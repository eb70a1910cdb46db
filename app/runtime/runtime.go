package runtime

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/framework/safety"
	"github.com/lexcodex/codebuddy/llm"
	"github.com/lexcodex/codebuddy/persistence"
	"github.com/lexcodex/codebuddy/tools"
)

// Config selects what New wires. Model and Runner override the configured
// provider and the local process runner.
type Config struct {
	Workspace string
	Global    *agents.GlobalConfig
	SessionID string
	Approver  framework.Approver
	Model     framework.LanguageModel
	Runner    framework.CommandRunner
	Logger    *zap.Logger
}

// Runtime wires the CLI, the TUI and the servers to one shared set of
// collaborators: model, tools, risk gate and the SQLite store.
type Runtime struct {
	Config    Config
	Global    *agents.GlobalConfig
	Workspace tools.Workspace
	Tools     *framework.ToolRegistry
	Gate      *safety.Gate
	Model     framework.LanguageModel
	Fallback  *llm.FallbackModel
	Store     *persistence.SQLiteStore
	Telemetry framework.Telemetry
	Rules     *agents.Ruleset
	Logger    *zap.Logger
	Agent     *agents.CodingAgent

	eventLog *framework.JSONFileTelemetry
	mu       sync.Mutex
	agents   map[string]*agents.CodingAgent
}

// New builds a runtime and the agent for cfg.SessionID (a fresh session when
// empty). Store failures degrade to in-memory history instead of failing.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	if cfg.Global == nil {
		cfg.Global = agents.DefaultConfig(cfg.Workspace)
	}
	if err := cfg.Global.Validate(); err != nil {
		return nil, err
	}
	ws, err := tools.NewWorkspace(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger, err = framework.NewLogger(cfg.Global.Logging)
		if err != nil {
			return nil, err
		}
	}
	global := cfg.Global
	rt := &Runtime{
		Config:    cfg,
		Global:    global,
		Workspace: ws,
		Logger:    logger,
		agents:    make(map[string]*agents.CodingAgent),
	}

	sinks := []framework.Telemetry{framework.ZapTelemetry{Logger: logger}}
	if global.LLM.Debug {
		path := filepath.Join(agents.ConfigDir(ws.Root), "logs", "events.jsonl")
		if events, err := openEventLog(path); err != nil {
			logger.Warn("event log unavailable", zap.String("path", path), zap.Error(err))
		} else {
			rt.eventLog = events
			sinks = append(sinks, events)
		}
	}
	rt.Telemetry = framework.MultiplexTelemetry{Sinks: sinks}

	if store, err := persistence.OpenSQLiteStore(global.Memory.DBPath); err != nil {
		logger.Warn("memory database unavailable, history will not persist",
			zap.String("path", global.Memory.DBPath), zap.Error(err))
	} else {
		rt.Store = store
	}

	runner := cfg.Runner
	if runner == nil {
		local, err := framework.NewLocalCommandRunner(ws.Root, global.Tools.ExecTimeout)
		if err != nil {
			rt.Close()
			return nil, err
		}
		runner = local
	}
	registry, err := tools.NewRegistry(ws, runner, tools.Options{
		TrashDir:      global.Tools.TrashDir,
		BackupOnWrite: global.Tools.BackupOnWrite,
		Exec: tools.ExecOptions{
			Python:      global.Tools.Python,
			TestCommand: global.Tools.TestCommand,
			Timeout:     global.Tools.ExecTimeout,
		},
		GitTimeout:        global.Tools.GitTimeout,
		GitNetworkTimeout: global.Tools.GitNetworkTimeout,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Tools = registry

	gateCfg := safety.GateConfig{
		Classifier:  safety.NewClassifier(ws.Root, global.Safety.Policy),
		Approver:    cfg.Approver,
		Logger:      logger,
		AutoApprove: global.Safety.AutoApprove,
	}
	if rt.Store != nil {
		gateCfg.Audit = rt.Store
	}
	rt.Gate = safety.NewGate(gateCfg)

	if cfg.Model != nil {
		rt.Model = llm.NewInstrumentedModel(cfg.Model, rt.Telemetry, global.LLM.Debug)
	} else {
		primary, err := BuildModel(ctx, global.LLM, logger)
		if err != nil {
			logger.Warn("language model unavailable, using offline mode", zap.Error(err))
		}
		rt.Fallback = llm.NewFallbackModel(primary, global.LLM.Timeout, logger)
		rt.Model = llm.NewInstrumentedModel(rt.Fallback, rt.Telemetry, global.LLM.Debug)
	}

	rules, err := agents.LoadRuleset(agents.DefaultRulesPath(ws.Root))
	if err != nil {
		logger.Warn("rules unavailable", zap.Error(err))
		rules = &agents.Ruleset{}
	}
	rt.Rules = rules

	agent, err := rt.AgentFor(ctx, cfg.SessionID)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Agent = agent
	return rt, nil
}

// BuildModel constructs the configured provider. Offline returns a nil model,
// which FallbackModel serves from the offline generator.
func BuildModel(ctx context.Context, cfg agents.LLMConfig, logger *zap.Logger) (framework.LanguageModel, error) {
	switch cfg.Provider {
	case agents.ProviderOffline:
		return nil, nil
	case agents.ProviderGemini:
		if cfg.APIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is not set")
		}
		client, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return client, nil
	case agents.ProviderOllama, "":
		client := llm.NewClient(cfg.Endpoint, cfg.Model)
		client.SetDebugLogging(cfg.Debug)
		client.Logger = logger
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// AgentFor returns the agent serving sessionID, creating it on first use.
// An empty id starts a new session.
func (r *Runtime) AgentFor(ctx context.Context, sessionID string) (*agents.CodingAgent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sessionID != "" {
		if agent, ok := r.agents[sessionID]; ok {
			return agent, nil
		}
	}
	var store framework.TurnStore
	if r.Store != nil && r.Global.Features.EnableMemory {
		store = r.Store
	}
	memory, err := framework.NewSessionMemory(ctx, sessionID, store)
	if err != nil {
		return nil, err
	}
	agent := &agents.CodingAgent{
		Model:     r.Model,
		Tools:     r.Tools,
		Memory:    memory,
		Gate:      r.Gate,
		Telemetry: r.Telemetry,
		Logger:    r.Logger,
		Rules:     r.Rules,
		SessionID: memory.SessionID(),
	}
	if err := agent.Initialize(r.Global); err != nil {
		return nil, err
	}
	r.agents[agent.SessionID] = agent
	return agent, nil
}

// ToolList returns the registered tools in registration order.
func (r *Runtime) ToolList() []framework.Tool {
	return r.Tools.All()
}

// Sessions lists the stored sessions, newest first.
func (r *Runtime) Sessions(ctx context.Context) ([]persistence.SessionInfo, error) {
	if r.Store == nil {
		return nil, errors.New("memory database unavailable")
	}
	return r.Store.Sessions(ctx)
}

// ProviderLabel names the model currently answering.
func (r *Runtime) ProviderLabel() string {
	if r.Fallback != nil && r.Fallback.Degraded() {
		return agents.ProviderOffline
	}
	if r.Config.Model != nil {
		return "custom"
	}
	return r.Global.LLM.Provider
}

// Close releases the store and the event log.
func (r *Runtime) Close() error {
	var errs []error
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	if r.eventLog != nil {
		errs = append(errs, r.eventLog.Close())
	}
	if r.Logger != nil && r.Config.Logger == nil {
		_ = r.Logger.Sync()
	}
	return errors.Join(errs...)
}
