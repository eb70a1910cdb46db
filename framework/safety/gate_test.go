package safety

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/framework"
)

type recordingApprover struct {
	answer bool
	err    error
	asked  []framework.ApprovalRequest
}

func (r *recordingApprover) AskApproval(ctx context.Context, req framework.ApprovalRequest) (bool, error) {
	r.asked = append(r.asked, req)
	return r.answer, r.err
}

func TestGateSafeNeverAsks(t *testing.T) {
	approver := &recordingApprover{}
	gate := NewGate(GateConfig{Classifier: NewClassifier(t.TempDir(), Policy{}), Approver: approver})
	ok, err := gate.RequestApproval(context.Background(), "read_file", framework.Params{"filepath": s("a.py")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, approver.asked)

	history, err := gate.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGateRecordsDenial(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", 5)
	approver := &recordingApprover{answer: false}
	gate := NewGate(GateConfig{Classifier: NewClassifier(root, Policy{}), Approver: approver})

	ok, err := gate.RequestApproval(context.Background(), "delete_file", framework.Params{"filepath": s("main.py")})
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, approver.asked, 1)
	req := approver.asked[0]
	assert.Equal(t, framework.RiskHigh, req.Risk)
	assert.Equal(t, "Delete file: main.py", req.Description)
	assert.Len(t, req.Warnings, 2)
	assert.Empty(t, req.Phrase)

	history, err := gate.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Approved)
	assert.Equal(t, "main.py", history[0].Details["filepath"])
}

func TestGateCriticalCarriesPhrase(t *testing.T) {
	approver := &recordingApprover{answer: true}
	gate := NewGate(GateConfig{Approver: approver})
	ok, err := gate.RequestApproval(context.Background(), "run_command", framework.Params{"command": s("rm -rf /data")})
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, approver.asked, 1)
	assert.Equal(t, framework.RiskCritical, approver.asked[0].Risk)
	assert.True(t, approver.asked[0].RequiresPhrase())
	assert.Equal(t, framework.DefaultConfirmationPhrase, approver.asked[0].Phrase)
	assert.Len(t, approver.asked[0].Warnings, 3)
}

func TestGateApproverErrorDenies(t *testing.T) {
	approver := &recordingApprover{answer: true, err: errors.New("terminal closed")}
	gate := NewGate(GateConfig{Approver: approver})
	ok, err := gate.RequestApproval(context.Background(), "git_add", framework.Params{})
	require.Error(t, err)
	assert.False(t, ok)

	history, _ := gate.History(context.Background())
	require.Len(t, history, 1)
	assert.False(t, history[0].Approved)
}

func TestGateWithoutApproverFailsClosed(t *testing.T) {
	gate := NewGate(GateConfig{})
	ok, err := gate.RequestApproval(context.Background(), "git_add", framework.Params{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoApprover)
}

func TestGateAutoApproveStopsBelowCritical(t *testing.T) {
	approver := &recordingApprover{answer: false}
	gate := NewGate(GateConfig{Approver: approver, AutoApprove: []string{"run_command"}})

	ok, err := gate.RequestApproval(context.Background(), "run_command", framework.Params{"command": s("curl x")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, approver.asked)

	ok, err = gate.RequestApproval(context.Background(), "run_command", framework.Params{"command": s("rm -rf /")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, approver.asked, 1)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Push to origin/current branch", Describe("git_push", framework.Params{}))
	assert.Equal(t, "Pull from upstream/dev", Describe("git_pull", framework.Params{"remote": s("upstream"), "branch": s("dev")}))
	assert.Equal(t, "Execute command: ls", Describe("run_command", framework.Params{"command": s("ls")}))
	assert.Equal(t, "Refactor app.py (auto)", Describe("refactor_code", framework.Params{"filepath": s("app.py")}))
	assert.Equal(t, "Execute mystery", Describe("mystery", nil))
}
