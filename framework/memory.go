package framework

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Working memory keys written by the agent loop.
const (
	WorkingKeyLastAction = "last_action"
	WorkingKeyLastResult = "last_result"
	WorkingKeyLastFile   = "last_file"
)

// ConversationTurn is the memory record for one user turn. It is built up
// during the turn and frozen once handed to Memory.Record.
type ConversationTurn struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	UserInput    string    `json:"user_input"`
	Reasoning    string    `json:"reasoning"`
	Actions      []string  `json:"actions"`
	Results      []string  `json:"results"`
	FilesTouched []string  `json:"files_touched"`
	Success      bool      `json:"success"`
	Lessons      string    `json:"lessons,omitempty"`
}

// NewConversationTurn starts a turn for the given input.
func NewConversationTurn(sessionID, input string) *ConversationTurn {
	return &ConversationTurn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		UserInput: input,
	}
}

func (t ConversationTurn) clone() ConversationTurn {
	t.Actions = append([]string(nil), t.Actions...)
	t.Results = append([]string(nil), t.Results...)
	t.FilesTouched = append([]string(nil), t.FilesTouched...)
	return t
}

// Memory is the collaborator that owns the conversation log and the working
// memory key/value store for a session.
type Memory interface {
	Record(ctx context.Context, turn ConversationTurn) error
	RecentContext(ctx context.Context, n int) (string, error)
	WorkingMemory() map[string]string
	SetWorkingMemory(key, value string)
}

// TurnStore persists turns beyond the life of the process.
type TurnStore interface {
	SaveTurn(ctx context.Context, turn ConversationTurn) error
	RecentTurns(ctx context.Context, sessionID string, n int) ([]ConversationTurn, error)
}

// WorkingMemoryStore is implemented by turn stores that also snapshot the
// working memory, so a resumed session starts where it left off.
type WorkingMemoryStore interface {
	SaveWorkingMemory(ctx context.Context, sessionID string, values map[string]string) error
	LoadWorkingMemory(ctx context.Context, sessionID string) (map[string]string, error)
}

const (
	sessionHistoryLimit = 50
	sessionHistoryKeep  = 30
	recentFilesLimit    = 10
)

// SessionMemory keeps one session's history in RAM and mirrors every turn
// into an optional TurnStore. One instance serves exactly one session.
type SessionMemory struct {
	mu          sync.RWMutex
	sessionID   string
	history     []ConversationTurn
	working     map[string]string
	recentFiles []string
	store       TurnStore
}

// NewSessionMemory creates memory for a new session. When store is non-nil
// the most recent turns of sessionID are loaded from it.
func NewSessionMemory(ctx context.Context, sessionID string, store TurnStore) (*SessionMemory, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	m := &SessionMemory{
		sessionID: sessionID,
		working:   make(map[string]string),
		store:     store,
	}
	if store != nil {
		turns, err := store.RecentTurns(ctx, sessionID, sessionHistoryKeep)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		for _, t := range turns {
			m.history = append(m.history, t)
			m.noteFiles(t.FilesTouched)
		}
		if ws, ok := store.(WorkingMemoryStore); ok {
			values, err := ws.LoadWorkingMemory(ctx, sessionID)
			if err != nil {
				return nil, fmt.Errorf("load working memory %s: %w", sessionID, err)
			}
			for k, v := range values {
				m.working[k] = v
			}
		}
	}
	return m, nil
}

// SessionID returns the session identifier.
func (m *SessionMemory) SessionID() string { return m.sessionID }

// Record appends the turn to the session history and persists it. The turn
// is appended even if persistence fails; the error is returned for logging.
func (m *SessionMemory) Record(ctx context.Context, turn ConversationTurn) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if turn.SessionID == "" {
		turn.SessionID = m.sessionID
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	turn = turn.clone()
	m.mu.Lock()
	m.history = append(m.history, turn)
	if len(m.history) > sessionHistoryLimit {
		m.history = append([]ConversationTurn(nil), m.history[len(m.history)-sessionHistoryKeep:]...)
	}
	m.noteFiles(turn.FilesTouched)
	m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	if err := m.store.SaveTurn(ctx, turn); err != nil {
		return err
	}
	if ws, ok := m.store.(WorkingMemoryStore); ok {
		return ws.SaveWorkingMemory(ctx, m.sessionID, m.WorkingMemory())
	}
	return nil
}

func (m *SessionMemory) noteFiles(files []string) {
	for _, f := range files {
		if f == "" {
			continue
		}
		for i, existing := range m.recentFiles {
			if existing == f {
				m.recentFiles = append(m.recentFiles[:i], m.recentFiles[i+1:]...)
				break
			}
		}
		m.recentFiles = append(m.recentFiles, f)
	}
	if len(m.recentFiles) > recentFilesLimit {
		m.recentFiles = m.recentFiles[len(m.recentFiles)-recentFilesLimit:]
	}
	if len(m.recentFiles) > 0 {
		m.working[WorkingKeyLastFile] = m.recentFiles[len(m.recentFiles)-1]
	}
}

// RecentContext renders the last n turns as prompt context. An empty
// history yields an empty string.
func (m *SessionMemory) RecentContext(ctx context.Context, n int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return "", nil
	}
	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	var b strings.Builder
	b.WriteString("=== Recent Conversation Context ===\n")
	for _, turn := range m.history[len(m.history)-n:] {
		fmt.Fprintf(&b, "\nUser: %s\n", turn.UserInput)
		if len(turn.Actions) > 0 {
			fmt.Fprintf(&b, "Actions: %s\n", strings.Join(turn.Actions, ", "))
		}
		fmt.Fprintf(&b, "Success: %t\n", turn.Success)
		if turn.Lessons != "" {
			fmt.Fprintf(&b, "Lesson: %s\n", turn.Lessons)
		}
	}
	if len(m.recentFiles) > 0 {
		fmt.Fprintf(&b, "\nRecent files: %s\n", strings.Join(m.recentFiles, ", "))
	}
	return b.String(), nil
}

// WorkingMemory returns a copy of the key/value store.
func (m *SessionMemory) WorkingMemory() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.working))
	for k, v := range m.working {
		out[k] = v
	}
	return out
}

// SetWorkingMemory stores a working-memory entry.
func (m *SessionMemory) SetWorkingMemory(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.working[key] = value
}

// History returns a copy of the in-memory turns, oldest first.
func (m *SessionMemory) History() []ConversationTurn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ConversationTurn, 0, len(m.history))
	for _, t := range m.history {
		out = append(out, t.clone())
	}
	return out
}

// RecentFiles returns the files touched most recently, newest last.
func (m *SessionMemory) RecentFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.recentFiles...)
}

// Summary reports how many turns in this session succeeded.
func (m *SessionMemory) Summary() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return "No actions yet this session."
	}
	ok := 0
	for _, t := range m.history {
		if t.Success {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d successful actions this session", ok, len(m.history))
}

// SimilarTurns returns successful past turns whose input shares at least
// threshold of its words with input (Jaccard similarity).
func (m *SessionMemory) SimilarTurns(input string, threshold float64) []ConversationTurn {
	words := wordSet(input)
	if len(words) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ConversationTurn
	for _, t := range m.history {
		if !t.Success {
			continue
		}
		if jaccard(words, wordSet(t.UserInput)) >= threshold {
			out = append(out, t.clone())
		}
	}
	return out
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
