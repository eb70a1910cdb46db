package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/framework"
)

type recordingTelemetry struct {
	events []framework.Event
}

func (r *recordingTelemetry) Emit(e framework.Event) { r.events = append(r.events, e) }

func TestInstrumentedModelEmitsCall(t *testing.T) {
	sink := &recordingTelemetry{}
	inner := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		return &framework.LLMResponse{Text: "git_status()", FinishReason: "stop"}, nil
	})
	model := NewInstrumentedModel(inner, sink, false)
	ctx := framework.WithTurnContext(context.Background(), framework.TurnContext{SessionID: "s1", TurnID: "t1", Iteration: 2})

	resp, err := model.Generate(ctx, "prompt text", &framework.LLMOptions{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "git_status()", resp.Text)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, framework.EventLLMCall, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, "t1", ev.TurnID)
	assert.Equal(t, 2, ev.Iteration)
	assert.Equal(t, "m", ev.Metadata["model"])
	assert.Equal(t, "git_status()", ev.Metadata["text_preview"])
	assert.NotContains(t, ev.Metadata, "prompt")
}

func TestInstrumentedModelRecordsErrors(t *testing.T) {
	sink := &recordingTelemetry{}
	inner := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		return nil, errors.New("boom")
	})
	_, err := NewInstrumentedModel(inner, sink, true).Generate(context.Background(), "p", nil)
	require.Error(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "boom", sink.events[0].Metadata["error"])
	assert.Equal(t, "p", sink.events[0].Metadata["prompt"])
}
