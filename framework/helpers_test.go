package framework

import (
	"context"
	"sync"
)

type stubTool struct {
	name   string
	params []ToolParameter
	calls  int
}

func (s *stubTool) Name() string                     { return s.name }
func (s *stubTool) Description() string              { return "stub " + s.name }
func (s *stubTool) Category() string                 { return "test" }
func (s *stubTool) Parameters() []ToolParameter      { return s.params }
func (s *stubTool) IsAvailable(context.Context) bool { return true }

func (s *stubTool) Execute(_ context.Context, params Params) (*ToolResult, error) {
	s.calls++
	return &ToolResult{Success: true, Message: s.name + " ok", Data: map[string]interface{}{"params": params.Keys()}}, nil
}

// memoryTurnStore keeps turns in a slice. err fails every save.
type memoryTurnStore struct {
	mu    sync.Mutex
	saved []ConversationTurn
	err   error
}

func (s *memoryTurnStore) SaveTurn(_ context.Context, turn ConversationTurn) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, turn)
	return nil
}

func (s *memoryTurnStore) RecentTurns(_ context.Context, sessionID string, n int) ([]ConversationTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ConversationTurn
	for _, t := range s.saved {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}
