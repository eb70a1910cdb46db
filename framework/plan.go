package framework

import "fmt"

// PlanKind discriminates the Plan variants.
type PlanKind int

const (
	PlanConversation PlanKind = iota
	PlanTool
	PlanError
)

func (k PlanKind) String() string {
	switch k {
	case PlanTool:
		return "tool_execution"
	case PlanError:
		return "error"
	default:
		return "conversation"
	}
}

// PlanStrategy records which parsing stage produced a plan.
type PlanStrategy string

const (
	StrategyWholeMatch PlanStrategy = "whole_match"
	StrategyEmbedded   PlanStrategy = "embedded_scan"
	StrategyJSON       PlanStrategy = "json_block"
	StrategyIntent     PlanStrategy = "intent"
	StrategyFallback   PlanStrategy = "fallback"
)

// Plan is the structured interpretation of one model response. Exactly one
// variant is active, selected by Kind: PlanTool uses Tool and Params,
// PlanConversation and PlanError use Text.
type Plan struct {
	Kind     PlanKind     `json:"kind"`
	Tool     string       `json:"tool,omitempty"`
	Params   Params       `json:"params,omitempty"`
	Text     string       `json:"text,omitempty"`
	Strategy PlanStrategy `json:"strategy,omitempty"`
}

// ToolPlan builds a ToolExecution plan.
func ToolPlan(tool string, params Params, strategy PlanStrategy) Plan {
	if params == nil {
		params = Params{}
	}
	return Plan{Kind: PlanTool, Tool: tool, Params: params, Strategy: strategy}
}

// ConversationPlan builds a Conversation plan.
func ConversationPlan(text string) Plan {
	return Plan{Kind: PlanConversation, Text: text, Strategy: StrategyFallback}
}

// ErrorPlan builds an ErrorPlan carrying a diagnostic.
func ErrorPlan(format string, args ...interface{}) Plan {
	return Plan{Kind: PlanError, Text: fmt.Sprintf(format, args...)}
}

// IsTool reports whether the plan executes a tool.
func (p Plan) IsTool() bool { return p.Kind == PlanTool }

// Describe renders the plan in call syntax for logs and memory.
func (p Plan) Describe() string {
	switch p.Kind {
	case PlanTool:
		return FormatToolCall(p.Tool, p.Params)
	case PlanError:
		return "error: " + p.Text
	default:
		return "conversation"
	}
}
