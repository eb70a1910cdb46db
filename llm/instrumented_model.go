package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

// InstrumentedModel wraps a LanguageModel and emits telemetry for prompts and responses.
type InstrumentedModel struct {
	Inner     framework.LanguageModel
	Telemetry framework.Telemetry
	Debug     bool
}

func NewInstrumentedModel(inner framework.LanguageModel, telemetry framework.Telemetry, debug bool) *InstrumentedModel {
	return &InstrumentedModel{Inner: inner, Telemetry: telemetry, Debug: debug}
}

func (m *InstrumentedModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	start := time.Now()
	resp, err := m.Inner.Generate(ctx, prompt, options)
	m.emit(ctx, prompt, options, resp, err, time.Since(start))
	return resp, err
}

func (m *InstrumentedModel) emit(ctx context.Context, prompt string, options *framework.LLMOptions, resp *framework.LLMResponse, err error, took time.Duration) {
	if m == nil || m.Telemetry == nil {
		return
	}
	metadata := map[string]interface{}{
		"model":          modelFromOptions(options),
		"prompt_chars":   len(prompt),
		"prompt_preview": clip(prompt, 1024),
		"duration_ms":    took.Milliseconds(),
	}
	if m.Debug {
		metadata["prompt"] = clip(prompt, 8192)
	}
	if resp != nil {
		metadata["finish_reason"] = resp.FinishReason
		metadata["text_preview"] = clip(resp.Text, 1024)
		if resp.Usage != nil {
			metadata["usage"] = resp.Usage
		}
		for k, v := range resp.Metadata {
			metadata[k] = v
		}
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	event := framework.Event{
		Type:      framework.EventLLMCall,
		Timestamp: time.Now().UTC(),
		Message:   fmt.Sprintf("llm generate (%d chars)", len(prompt)),
		Metadata:  metadata,
	}
	if turn, ok := framework.TurnContextFrom(ctx); ok {
		event.SessionID = turn.SessionID
		event.TurnID = turn.TurnID
		event.Iteration = turn.Iteration
	}
	m.Telemetry.Emit(event)
}

func modelFromOptions(options *framework.LLMOptions) string {
	if options != nil && options.Model != "" {
		return options.Model
	}
	return ""
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
