package framework

import "context"

type turnContextKey struct{}

// TurnContext carries turn metadata through contexts so telemetry and
// downstream components can correlate LLM and tool activity to one turn.
type TurnContext struct {
	SessionID string
	TurnID    string
	Iteration int
	UserInput string
}

// WithTurnContext attaches turn metadata to the context.
func WithTurnContext(ctx context.Context, turn TurnContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, turnContextKey{}, turn)
}

// TurnContextFrom extracts turn metadata, if present.
func TurnContextFrom(ctx context.Context) (TurnContext, bool) {
	if ctx == nil {
		return TurnContext{}, false
	}
	turn, ok := ctx.Value(turnContextKey{}).(TurnContext)
	return turn, ok
}
