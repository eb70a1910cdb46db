package framework

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionMemoryRecentContext(t *testing.T) {
	ctx := context.Background()
	mem, err := NewSessionMemory(ctx, "s1", nil)
	require.NoError(t, err)

	text, err := mem.RecentContext(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, text)

	require.NoError(t, mem.Record(ctx, ConversationTurn{
		UserInput:    "create hello.py",
		Actions:      []string{`write_file(filepath="hello.py")`},
		FilesTouched: []string{"hello.py"},
		Success:      true,
		Lessons:      "write_file worked",
	}))
	require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: "run hello.py", Success: false}))

	text, err = mem.RecentContext(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "=== Recent Conversation Context ===")
	assert.Contains(t, text, "User: run hello.py")
	assert.NotContains(t, text, "User: create hello.py")
	assert.Contains(t, text, "Recent files: hello.py")

	assert.Equal(t, "hello.py", mem.WorkingMemory()[WorkingKeyLastFile])
	assert.Equal(t, "1/2 successful actions this session", mem.Summary())
}

func TestSessionMemoryWorkingMemoryIsCopied(t *testing.T) {
	mem, err := NewSessionMemory(context.Background(), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, mem.SessionID())

	mem.SetWorkingMemory(WorkingKeyLastAction, "read_file")
	snapshot := mem.WorkingMemory()
	snapshot[WorkingKeyLastAction] = "tampered"
	assert.Equal(t, "read_file", mem.WorkingMemory()[WorkingKeyLastAction])
}

func TestSessionMemoryTrimsHistory(t *testing.T) {
	ctx := context.Background()
	mem, err := NewSessionMemory(ctx, "s1", nil)
	require.NoError(t, err)
	for i := 0; i < sessionHistoryLimit+1; i++ {
		require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: fmt.Sprintf("turn %d", i)}))
	}
	history := mem.History()
	require.Len(t, history, sessionHistoryKeep)
	assert.Equal(t, fmt.Sprintf("turn %d", sessionHistoryLimit), history[len(history)-1].UserInput)
}

func TestSessionMemoryPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	store := &memoryTurnStore{}
	mem, err := NewSessionMemory(ctx, "s1", store)
	require.NoError(t, err)
	require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: "list files", Success: true, FilesTouched: []string{"a.py"}}))
	require.Len(t, store.saved, 1)
	assert.Equal(t, "s1", store.saved[0].SessionID)
	assert.NotEmpty(t, store.saved[0].ID)

	reloaded, err := NewSessionMemory(ctx, "s1", store)
	require.NoError(t, err)
	require.Len(t, reloaded.History(), 1)
	assert.Equal(t, []string{"a.py"}, reloaded.RecentFiles())
}

func TestSessionMemoryKeepsTurnWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	store := &memoryTurnStore{err: errors.New("disk full")}
	mem, err := NewSessionMemory(ctx, "s1", store)
	require.NoError(t, err)
	err = mem.Record(ctx, ConversationTurn{UserInput: "x"})
	require.Error(t, err)
	assert.Len(t, mem.History(), 1)
}

func TestSessionMemorySimilarTurns(t *testing.T) {
	ctx := context.Background()
	mem, err := NewSessionMemory(ctx, "s1", nil)
	require.NoError(t, err)
	require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: "create file hello.py", Success: true}))
	require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: "create file hello.py now", Success: false}))
	require.NoError(t, mem.Record(ctx, ConversationTurn{UserInput: "git status", Success: true}))

	similar := mem.SimilarTurns("create file hello.py", 0.6)
	require.Len(t, similar, 1)
	assert.Equal(t, "create file hello.py", similar[0].UserInput)
	assert.Empty(t, mem.SimilarTurns("", 0.6))
}
