package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/framework"
)

type modelFunc func(ctx context.Context, prompt string) (*framework.LLMResponse, error)

func (f modelFunc) Generate(ctx context.Context, prompt string, _ *framework.LLMOptions) (*framework.LLMResponse, error) {
	return f(ctx, prompt)
}

func TestFallbackUsesPrimary(t *testing.T) {
	calls := 0
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		calls++
		return &framework.LLMResponse{Text: "list_files()"}, nil
	})
	model := NewFallbackModel(primary, time.Second, nil)
	resp, err := model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, "list_files()", resp.Text)
	assert.Equal(t, 1, calls)
	assert.False(t, model.Degraded())
}

func TestFallbackSubstitutesOfflineOnError(t *testing.T) {
	calls := 0
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		calls++
		return nil, errors.New("quota exceeded")
	})
	model := NewFallbackModel(primary, time.Second, nil)

	resp, err := model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, "git_status()", resp.Text)
	assert.Equal(t, true, resp.Metadata["fallback"])
	assert.Equal(t, "quota exceeded", resp.Metadata["primary_error"])
	assert.True(t, model.Degraded())

	_, err = model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "the primary is skipped during the cooldown")
}

func TestFallbackRetriesPrimaryAfterCooldown(t *testing.T) {
	calls := 0
	failing := true
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		calls++
		if failing {
			return nil, errors.New("connection refused")
		}
		return &framework.LLMResponse{Text: "list_files()"}, nil
	})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	model := NewFallbackModel(primary, time.Second, nil)
	model.now = func() time.Time { return now }

	_, err := model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	require.True(t, model.Degraded())

	now = now.Add(DefaultCooldown - time.Second)
	_, err = model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	failing = false
	now = now.Add(2 * time.Second)
	assert.False(t, model.Degraded())
	resp, err := model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, "list_files()", resp.Text)
	assert.Equal(t, 2, calls)
	assert.False(t, model.Degraded())
}

func TestFallbackTimesOutSlowPrimary(t *testing.T) {
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	model := NewFallbackModel(primary, 20*time.Millisecond, nil)
	model.Cooldown = 0

	start := time.Now()
	resp, err := model.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, "git_status()", resp.Text)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, model.Degraded())
}

func TestFallbackTreatsEmptyTextAsFailure(t *testing.T) {
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		return &framework.LLMResponse{Text: "   "}, nil
	})
	model := NewFallbackModel(primary, time.Second, nil)
	resp, err := model.Generate(context.Background(), promptFor("hello there"), nil)
	require.NoError(t, err)
	assert.Equal(t, OfflineGreeting, resp.Text)
}

func TestFallbackWithoutOfflineIsUnavailable(t *testing.T) {
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		return nil, errors.New("connection refused")
	})
	model := &FallbackModel{Primary: primary, Timeout: time.Second}
	_, err := model.Generate(context.Background(), "p", nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestFallbackRespectsCallerCancellation(t *testing.T) {
	primary := modelFunc(func(ctx context.Context, prompt string) (*framework.LLMResponse, error) {
		return nil, ctx.Err()
	})
	model := NewFallbackModel(primary, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := model.Generate(ctx, "p", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, model.Degraded())
}

func TestFallbackOfflineOnly(t *testing.T) {
	model := NewFallbackModel(nil, 0, nil)
	assert.True(t, model.Degraded())
	resp, err := model.Generate(context.Background(), promptFor("list the files"), nil)
	require.NoError(t, err)
	assert.Equal(t, `list_files(folderpath=".")`, resp.Text)
}
