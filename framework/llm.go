package framework

import "context"

// LLMOptions configures a single generation call.
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// LLMResponse is the model output for one call.
type LLMResponse struct {
	Text         string                 `json:"text"`
	FinishReason string                 `json:"finish_reason,omitempty"`
	Usage        map[string]int         `json:"usage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// LanguageModel is the LLM collaborator: prompt in, text out. Calls may fail
// on network or quota errors; callers decide how to degrade.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, options *LLMOptions) (*LLMResponse, error)
}

// Prompt section markers shared by the agent's prompt builder and the
// offline generator, which reads the request back out of the prompt.
const (
	PromptRequestMarker  = "User request:"
	PromptPreviousMarker = "Previous attempt:"
	// TaskCompleteMarker in model output ends the reasoning loop.
	TaskCompleteMarker = "TASK_COMPLETE"
)
