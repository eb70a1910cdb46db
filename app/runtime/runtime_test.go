package runtime

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
)

func newOfflineRuntime(t *testing.T, approver framework.Approver) *Runtime {
	t.Helper()
	dir := t.TempDir()
	cfg := agents.DefaultConfig(dir)
	cfg.LLM.Provider = agents.ProviderOffline
	rt, err := New(context.Background(), Config{
		Workspace: dir,
		Global:    cfg,
		Approver:  approver,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestNewWiresOfflineRuntime(t *testing.T) {
	rt := newOfflineRuntime(t, nil)
	require.NotNil(t, rt.Agent)
	require.NotNil(t, rt.Store)
	assert.Equal(t, agents.ProviderOffline, rt.ProviderLabel())
	_, ok := rt.Tools.Get("write_file")
	assert.True(t, ok)
	assert.FileExists(t, rt.Global.Memory.DBPath)
}

func TestRuntimePersistsTurnsAndApprovals(t *testing.T) {
	denied := framework.ApproverFunc(func(ctx context.Context, req framework.ApprovalRequest) (bool, error) {
		return false, nil
	})
	rt := newOfflineRuntime(t, denied)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(rt.Workspace.Root, "main.py"), []byte("print(1)\n"), 0o644))

	resp, err := rt.Agent.Process(ctx, `write_file(filepath="hello.py", content="print('hi')")`)
	require.NoError(t, err)
	assert.Equal(t, agents.OutcomeSuccess, resp.Outcome)

	resp, err = rt.Agent.Process(ctx, `delete_file(filepath="main.py")`)
	require.NoError(t, err)
	assert.Equal(t, agents.OutcomeCancelled, resp.Outcome)

	sessions, err := rt.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, rt.Agent.SessionID, sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].Turns)

	records, err := rt.Gate.History(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "delete_file", records[0].Tool)
}

func TestAgentForReusesSessions(t *testing.T) {
	rt := newOfflineRuntime(t, nil)
	ctx := context.Background()
	same, err := rt.AgentFor(ctx, rt.Agent.SessionID)
	require.NoError(t, err)
	assert.Same(t, rt.Agent, same)

	other, err := rt.AgentFor(ctx, "")
	require.NoError(t, err)
	assert.NotEqual(t, rt.Agent.SessionID, other.SessionID)
}

func TestBuildModelRejectsMissingGeminiKey(t *testing.T) {
	_, err := BuildModel(context.Background(), agents.LLMConfig{Provider: agents.ProviderGemini}, nil)
	assert.Error(t, err)

	model, err := BuildModel(context.Background(), agents.LLMConfig{Provider: agents.ProviderOffline}, nil)
	assert.NoError(t, err)
	assert.Nil(t, model)
}

func TestCheckEnvironmentOffline(t *testing.T) {
	cfg := agents.DefaultConfig(t.TempDir())
	cfg.LLM.Provider = agents.ProviderOffline
	cfg.Tools.Python = "definitely-not-a-python-binary"
	report := CheckEnvironment(context.Background(), t.TempDir(), cfg)
	assert.True(t, report.Model.Healthy)
	require.Len(t, report.Binaries, 2)
	assert.NotEmpty(t, report.Binaries[0].Error)
	assert.False(t, report.Healthy())
}
