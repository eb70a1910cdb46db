package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents/parse"
	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/framework/safety"
)

// DefaultMaxIterations bounds the reasoning loop.
const DefaultMaxIterations = 5

const defaultLessonTimeout = 10 * time.Second

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeConversation Outcome = "conversation"
	OutcomeCancelled    Outcome = "cancelled"
	OutcomeToolFailure  Outcome = "tool_failure"
	OutcomeParseError   Outcome = "parse_error"
	OutcomeUnavailable  Outcome = "unavailable"
)

// Response is the printable result of one user turn.
type Response struct {
	TurnID     string                `json:"turn_id"`
	Mode       Mode                  `json:"mode"`
	Outcome    Outcome               `json:"outcome"`
	Message    string                `json:"message"`
	Plan       framework.Plan        `json:"plan"`
	Risk       framework.RiskLevel   `json:"risk"`
	Result     *framework.ToolResult `json:"result,omitempty"`
	Actions    []string              `json:"actions,omitempty"`
	Iterations int                   `json:"iterations"`
	Lesson     string                `json:"lesson,omitempty"`
}

// Options tune the agent; zero values fall back to defaults.
type Options struct {
	MaxIterations       int
	RecentTurns         int
	SimilarityThreshold float64
	Features            FeatureFlags
	Model               string
	LessonTimeout       time.Duration
}

// merge overlays the configured values that are set. LessonTimeout has no
// config key and is kept.
func (o *Options) merge(cfg *GlobalConfig) {
	if cfg.Agent.MaxIterations > 0 {
		o.MaxIterations = cfg.Agent.MaxIterations
	}
	if cfg.Memory.RecentTurns > 0 {
		o.RecentTurns = cfg.Memory.RecentTurns
	}
	if cfg.Memory.SimilarityThreshold > 0 {
		o.SimilarityThreshold = cfg.Memory.SimilarityThreshold
	}
	if cfg.LLM.Model != "" {
		o.Model = cfg.LLM.Model
	}
	o.Features = cfg.Features
}

// CodingAgent turns user requests into at most one risk-gated tool call per
// iteration. Collaborators are handed in explicitly; Initialize fills the
// gaps. Turns are serialised, so one agent serves one session.
type CodingAgent struct {
	Model     framework.LanguageModel
	Tools     *framework.ToolRegistry
	Memory    framework.Memory
	Gate      *safety.Gate
	Parser    *parse.Parser
	Telemetry framework.Telemetry
	Logger    *zap.Logger
	Rules     *Ruleset
	Options   Options
	SessionID string

	profiles map[Mode]ModeProfile
	mu       sync.Mutex
}

// Initialize wires configuration and default collaborators.
func (a *CodingAgent) Initialize(cfg *GlobalConfig) error {
	switch {
	case cfg != nil:
		a.Options.merge(cfg)
	case a.Options.Features == (FeatureFlags{}):
		a.Options.Features = DefaultConfig("").Features
	}
	if a.Model == nil {
		return errors.New("coding agent requires a language model")
	}
	if a.Tools == nil {
		a.Tools = framework.NewToolRegistry()
	}
	if a.Parser == nil {
		a.Parser = parse.NewParser(a.Tools)
	}
	a.Parser.DisableIntent = !a.Options.Features.EnableIntentInference
	if a.Gate == nil {
		a.Gate = safety.NewGate(safety.GateConfig{Logger: a.Logger})
	}
	if a.Memory == nil {
		mem, err := framework.NewSessionMemory(context.Background(), a.SessionID, nil)
		if err != nil {
			return err
		}
		a.Memory = mem
	}
	if sm, ok := a.Memory.(*framework.SessionMemory); ok && a.SessionID == "" {
		a.SessionID = sm.SessionID()
	}
	if a.Options.MaxIterations <= 0 {
		a.Options.MaxIterations = DefaultMaxIterations
	}
	if a.Options.RecentTurns <= 0 {
		a.Options.RecentTurns = 5
	}
	if a.Options.SimilarityThreshold <= 0 {
		a.Options.SimilarityThreshold = 0.6
	}
	if a.Options.LessonTimeout <= 0 {
		a.Options.LessonTimeout = defaultLessonTimeout
	}
	a.Logger = framework.LoggerOrNop(a.Logger)
	a.profiles = defaultModeProfiles()
	return nil
}

// Process handles one user turn end to end. Failures below the agent are
// folded into the Response; the error is non-nil only when ctx ends first.
func (a *CodingAgent) Process(ctx context.Context, input string) (*Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profiles == nil {
		if err := a.Initialize(nil); err != nil {
			return nil, err
		}
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return &Response{Outcome: OutcomeConversation, Message: "Please enter a request.", Plan: framework.ConversationPlan("")}, nil
	}

	turn := framework.NewConversationTurn(a.SessionID, input)
	ctx = framework.WithTurnContext(ctx, framework.TurnContext{SessionID: a.SessionID, TurnID: turn.ID, UserInput: input})
	mode := ClassifyRequest(input, a.Tools.Names(), a.Options.Features)
	a.emit(ctx, framework.EventTurnStart, input, map[string]interface{}{"mode": string(mode)})
	start := time.Now()

	var resp *Response
	switch mode {
	case ModeExplain:
		resp = a.explain(ctx, turn)
	case ModeDirect:
		resp = a.direct(ctx, turn)
	default:
		resp = a.loop(ctx, turn)
	}
	resp.TurnID = turn.ID
	resp.Mode = mode
	if err := ctx.Err(); err != nil {
		return resp, err
	}

	a.emit(ctx, framework.EventTurnFinish, string(resp.Outcome), map[string]interface{}{
		"outcome":     string(resp.Outcome),
		"iterations":  resp.Iterations,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// direct performs one Reason→Act pass. A request that is itself a tool call
// skips the model.
func (a *CodingAgent) direct(ctx context.Context, turn *framework.ConversationTurn) *Response {
	resp := &Response{Iterations: 1}
	plan := a.Parser.Parse(turn.UserInput, turn.UserInput)
	if plan.Strategy != framework.StrategyWholeMatch {
		text, err := a.reason(ctx, buildDirectPrompt(turn.UserInput, a.perceive(ctx, turn.UserInput, false)), ModeDirect)
		if err != nil {
			a.unavailable(resp, err)
			a.record(ctx, turn, false)
			return resp
		}
		turn.Reasoning = text
		plan = a.Parser.Parse(text, turn.UserInput)
	}
	a.emitPlan(ctx, plan)
	a.act(ctx, turn, plan, resp)
	resp.Actions = append([]string(nil), turn.Actions...)
	a.record(ctx, turn, resp.Outcome == OutcomeSuccess || resp.Outcome == OutcomeConversation)
	return resp
}

// loop runs perceive → reason → act → observe until the model signals
// completion, an action succeeds, or the iteration budget is spent.
func (a *CodingAgent) loop(ctx context.Context, turn *framework.ConversationTurn) *Response {
	resp := &Response{}
	var attempts []attempt
	limit := a.Options.MaxIterations
	snapshot := a.perceive(ctx, turn.UserInput, true)
	completed := false

	for iter := 1; iter <= limit; iter++ {
		if ctx.Err() != nil {
			break
		}
		resp.Iterations = iter
		iterCtx := framework.WithTurnContext(ctx, framework.TurnContext{
			SessionID: a.SessionID, TurnID: turn.ID, Iteration: iter, UserInput: turn.UserInput,
		})
		text, err := a.reason(iterCtx, buildReasoningPrompt(turn.UserInput, snapshot, attempts, iter, limit), ModeLoop)
		if err != nil {
			a.unavailable(resp, err)
			break
		}
		turn.Reasoning += fmt.Sprintf("Iteration %d: %s\n", iter, text)

		if strings.Contains(text, framework.TaskCompleteMarker) {
			completed = true
			if len(attempts) == 0 {
				resp.Outcome = OutcomeConversation
				resp.Plan = framework.ConversationPlan(text)
				resp.Message = completionNote(text)
			}
			break
		}

		plan := a.Parser.Parse(text, turn.UserInput)
		a.emitPlan(iterCtx, plan)
		a.act(iterCtx, turn, plan, resp)
		if plan.Kind == framework.PlanTool && resp.Outcome != OutcomeCancelled {
			last := attempt{Action: plan.Describe(), OK: resp.Outcome == OutcomeSuccess}
			if resp.Result != nil {
				last.Result = resp.Result.Message
			}
			attempts = append(attempts, last)
			a.observe(plan, last)
			snapshot.Working = a.Memory.WorkingMemory()
		} else if plan.Kind == framework.PlanError {
			attempts = append(attempts, attempt{Action: "parse", Result: plan.Text})
		}

		if resp.Outcome != OutcomeToolFailure && resp.Outcome != OutcomeParseError {
			break
		}
	}

	success := resp.Outcome == OutcomeSuccess || resp.Outcome == OutcomeConversation
	if completed && len(attempts) > 0 {
		success = attempts[len(attempts)-1].OK
	}
	resp.Actions = append([]string(nil), turn.Actions...)
	resp.Lesson = a.learn(ctx, turn, success)
	a.record(ctx, turn, success)
	if len(turn.Actions) > 0 && resp.Outcome != OutcomeCancelled {
		resp.Message = formatLoopResponse(turn, resp, success)
	}
	return resp
}

// act executes the plan into resp. Tool plans pass the risk gate first; a
// denial never reaches the tool.
func (a *CodingAgent) act(ctx context.Context, turn *framework.ConversationTurn, plan framework.Plan, resp *Response) {
	resp.Plan = plan
	resp.Result = nil
	switch plan.Kind {
	case framework.PlanConversation:
		resp.Outcome = OutcomeConversation
		resp.Message = plan.Text
		return
	case framework.PlanError:
		resp.Outcome = OutcomeParseError
		resp.Message = "I couldn't turn that into an action: " + plan.Text
		return
	}

	tool, ok := a.Tools.Get(plan.Tool)
	if !ok {
		resp.Outcome = OutcomeParseError
		resp.Message = fmt.Sprintf("%v: %s", framework.ErrToolNotFound, plan.Tool)
		return
	}
	risk := a.Gate.Classify(plan.Tool, plan.Params)
	resp.Risk = risk
	a.emit(ctx, framework.EventRiskAssessed, plan.Tool, map[string]interface{}{"tool": plan.Tool, "risk": risk.String()})

	approved, err := a.Gate.RequestApproval(ctx, plan.Tool, plan.Params)
	if risk != framework.RiskSafe {
		meta := map[string]interface{}{"tool": plan.Tool, "risk": risk.String(), "approved": approved}
		if err != nil {
			meta["error"] = err.Error()
		}
		a.emit(ctx, framework.EventApprovalResult, plan.Tool, meta)
	}
	if err != nil || !approved {
		resp.Outcome = OutcomeCancelled
		resp.Message = fmt.Sprintf("Operation cancelled: %s was not approved (%s risk).", safety.Describe(plan.Tool, plan.Params), risk)
		resp.Result = &framework.ToolResult{Message: resp.Message, Error: framework.ErrApprovalDenied.Error()}
		if err != nil {
			a.Logger.Warn("approval failed", zap.String("tool", plan.Tool), zap.Error(err))
		}
		turn.Actions = append(turn.Actions, plan.Describe())
		turn.Results = append(turn.Results, resp.Message)
		return
	}

	a.emit(ctx, framework.EventToolCall, plan.Tool, map[string]interface{}{"tool": plan.Tool, "params": plan.Params.Interface()})
	start := time.Now()
	result := a.execute(ctx, tool, plan.Params)
	a.emit(ctx, framework.EventToolResult, plan.Tool, map[string]interface{}{
		"tool":        plan.Tool,
		"success":     result.Success,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	resp.Result = result
	resp.Message = result.Message
	turn.Actions = append(turn.Actions, plan.Describe())
	turn.Results = append(turn.Results, result.Message)
	if result.Success {
		resp.Outcome = OutcomeSuccess
		turn.FilesTouched = appendFiles(turn.FilesTouched, plan.Params)
	} else {
		resp.Outcome = OutcomeToolFailure
	}
}

// execute runs the tool, converting errors and panics into failed results.
func (a *CodingAgent) execute(ctx context.Context, tool framework.Tool, params framework.Params) (res *framework.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			a.Logger.Error("tool panicked", zap.String("tool", tool.Name()), zap.Any("panic", r))
			res = framework.Failed("%s crashed: %v", tool.Name(), r)
		}
	}()
	out, err := tool.Execute(ctx, params)
	if err != nil {
		return framework.Failed("%s failed: %v", tool.Name(), err)
	}
	if out == nil {
		return framework.Failed("%s returned no result", tool.Name())
	}
	return out
}

// explain reads the referenced file and asks the model about it.
func (a *CodingAgent) explain(ctx context.Context, turn *framework.ConversationTurn) *Response {
	path := explainFile(turn.UserInput)
	resp := &Response{Iterations: 1}
	plan := framework.ToolPlan("read_file", framework.Params{"filepath": framework.StringValue(path)}, framework.StrategyIntent)
	a.act(ctx, turn, plan, resp)
	if resp.Outcome != OutcomeSuccess {
		a.record(ctx, turn, false)
		return resp
	}
	content, _ := resp.Result.Data["content"].(string)
	llmResp, err := a.generate(ctx, buildExplainPrompt(turn.UserInput, path, content), ModeExplain)
	switch {
	case err != nil:
		a.unavailable(resp, err)
	case isOffline(llmResp):
		resp.Outcome = OutcomeConversation
		resp.Message = fmt.Sprintf("The language model is unavailable, so here is %s as-is:\n%s", path, content)
	default:
		resp.Outcome = OutcomeConversation
		resp.Message = strings.TrimSpace(llmResp.Text)
		turn.Reasoning = llmResp.Text
	}
	a.record(ctx, turn, resp.Outcome == OutcomeConversation)
	return resp
}

// perceive gathers the context snapshot. It only reads.
func (a *CodingAgent) perceive(ctx context.Context, input string, full bool) perception {
	p := perception{Tools: a.Tools.All(), Rules: a.Rules.Prompt()}
	if !full || !a.Options.Features.EnableMemory {
		return p
	}
	recent, err := a.Memory.RecentContext(ctx, a.Options.RecentTurns)
	if err != nil {
		a.Logger.Warn("recent context unavailable", zap.Error(err))
	}
	p.Recent = recent
	p.Working = a.Memory.WorkingMemory()
	if s, ok := a.Memory.(interface {
		SimilarTurns(string, float64) []framework.ConversationTurn
	}); ok {
		p.Similar = s.SimilarTurns(input, a.Options.SimilarityThreshold)
		if len(p.Similar) > 3 {
			p.Similar = p.Similar[len(p.Similar)-3:]
		}
	}
	return p
}

// reason calls the model and returns its text. An empty answer counts as
// text; the parser turns it into an ErrorPlan.
func (a *CodingAgent) reason(ctx context.Context, prompt string, mode Mode) (string, error) {
	resp, err := a.generate(ctx, prompt, mode)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (a *CodingAgent) generate(ctx context.Context, prompt string, mode Mode) (*framework.LLMResponse, error) {
	profile := a.profiles[mode]
	resp, err := a.Model.Generate(ctx, prompt, &framework.LLMOptions{
		Model:       a.Options.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
	})
	if err != nil {
		a.Logger.Warn("language model failed", zap.String("mode", string(mode)), zap.Error(err))
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("language model returned no response")
	}
	return resp, nil
}

// observe folds the latest action into working memory.
func (a *CodingAgent) observe(plan framework.Plan, last attempt) {
	a.Memory.SetWorkingMemory(framework.WorkingKeyLastAction, last.Action)
	a.Memory.SetWorkingMemory(framework.WorkingKeyLastResult, clip(last.Result, resultPreviewChars))
	if path := plan.Params.String("filepath"); path != "" {
		a.Memory.SetWorkingMemory(framework.WorkingKeyLastFile, path)
	}
}

// learn produces the lesson for the turn. The model is only consulted when
// enabled, under its own short deadline.
func (a *CodingAgent) learn(ctx context.Context, turn *framework.ConversationTurn, success bool) string {
	turn.Success = success
	lesson := summarizeTurn(*turn)
	if a.Options.Features.LLMLessons && len(turn.Actions) > 0 {
		lctx, cancel := context.WithTimeout(ctx, a.Options.LessonTimeout)
		defer cancel()
		if resp, err := a.Model.Generate(lctx, buildLessonPrompt(*turn), &framework.LLMOptions{Model: a.Options.Model, MaxTokens: 128}); err == nil && !isOffline(resp) {
			if text := strings.TrimSpace(resp.Text); text != "" {
				lesson = clip(text, 300)
			}
		}
	}
	turn.Lessons = lesson
	return lesson
}

// record hands the finished turn to memory. Failures are logged only.
func (a *CodingAgent) record(ctx context.Context, turn *framework.ConversationTurn, success bool) {
	turn.Success = success
	if !a.Options.Features.EnableMemory {
		return
	}
	if err := a.Memory.Record(ctx, *turn); err != nil {
		a.Logger.Warn("memory record failed", zap.String("turn", turn.ID), zap.Error(err))
	}
}

func (a *CodingAgent) unavailable(resp *Response, err error) {
	resp.Outcome = OutcomeUnavailable
	resp.Plan = framework.ErrorPlan("language model unavailable: %v", err)
	resp.Message = fmt.Sprintf("The language model is unavailable: %v", err)
}

func (a *CodingAgent) emitPlan(ctx context.Context, plan framework.Plan) {
	a.emit(ctx, framework.EventPlanParsed, plan.Kind.String(), map[string]interface{}{
		"kind":     plan.Kind.String(),
		"strategy": string(plan.Strategy),
		"plan":     plan.Describe(),
	})
}

func (a *CodingAgent) emit(ctx context.Context, typ framework.EventType, msg string, meta map[string]interface{}) {
	if a.Telemetry == nil {
		return
	}
	event := framework.Event{Type: typ, Message: msg, Timestamp: time.Now().UTC(), Metadata: meta}
	if tc, ok := framework.TurnContextFrom(ctx); ok {
		event.SessionID = tc.SessionID
		event.TurnID = tc.TurnID
		event.Iteration = tc.Iteration
	}
	a.Telemetry.Emit(event)
}

// History returns the turns remembered for this session, oldest first.
func (a *CodingAgent) History() []framework.ConversationTurn {
	if h, ok := a.Memory.(interface {
		History() []framework.ConversationTurn
	}); ok {
		return h.History()
	}
	return nil
}

// ApprovalHistory returns every approval decision recorded by the gate.
func (a *CodingAgent) ApprovalHistory(ctx context.Context) ([]framework.ApprovalRecord, error) {
	return a.Gate.History(ctx)
}

func isOffline(resp *framework.LLMResponse) bool {
	if resp == nil || resp.Metadata == nil {
		return false
	}
	provider, _ := resp.Metadata["provider"].(string)
	return provider == "offline"
}

func completionNote(text string) string {
	idx := strings.Index(text, framework.TaskCompleteMarker)
	note := strings.TrimSpace(strings.TrimLeft(text[idx+len(framework.TaskCompleteMarker):], ": "))
	if note == "" {
		return "Task complete."
	}
	return note
}

func appendFiles(files []string, params framework.Params) []string {
	for _, key := range []string{"filepath", "folderpath"} {
		if p := params.String(key); p != "" {
			files = append(files, p)
		}
	}
	return files
}

func summarizeTurn(turn framework.ConversationTurn) string {
	if len(turn.Actions) == 0 {
		return "Answered without running a tool."
	}
	verb := "Completed"
	if !turn.Success {
		verb = "Could not complete"
	}
	return fmt.Sprintf("%s %q using %s.", verb, clip(turn.UserInput, 80), strings.Join(turn.Actions, ", "))
}

func formatLoopResponse(turn *framework.ConversationTurn, resp *Response, success bool) string {
	var b strings.Builder
	if success {
		b.WriteString("Task completed.\n\n")
	} else {
		b.WriteString("Task encountered issues.\n\n")
	}
	if n := len(turn.Results); n > 0 {
		b.WriteString(turn.Results[n-1])
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Actions taken: %s", strings.Join(turn.Actions, ", "))
	if resp.Lesson != "" {
		fmt.Fprintf(&b, "\nLesson: %s", resp.Lesson)
	}
	return b.String()
}
