package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/llm"
	"github.com/lexcodex/codebuddy/tools"
)

type fakeSession struct {
	agent    *agents.CodingAgent
	registry *framework.ToolRegistry
}

func (s fakeSession) Tools() []framework.Tool    { return s.registry.All() }
func (s fakeSession) Agent() *agents.CodingAgent { return s.agent }
func (s fakeSession) Provider() string           { return "offline" }

func newFakeSession(t *testing.T) (fakeSession, string) {
	t.Helper()
	root := t.TempDir()
	ws, err := tools.NewWorkspace(root)
	require.NoError(t, err)
	registry, err := tools.NewRegistry(ws, nil, tools.Options{TrashDir: filepath.Join(root, ".trash")})
	require.NoError(t, err)
	agent := &agents.CodingAgent{Model: llm.OfflineModel{}, Tools: registry}
	require.NoError(t, agent.Initialize(agents.DefaultConfig(root)))
	return fakeSession{agent: agent, registry: registry}, root
}

func typeAndSubmit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func askInBackground(broker *framework.HITLBroker, req framework.ApprovalRequest) <-chan bool {
	out := make(chan bool, 1)
	go func() {
		ok, _ := broker.AskApproval(context.Background(), req)
		out <- ok
	}()
	return out
}

func receiveEvent(t *testing.T, m Model) Model {
	t.Helper()
	msg := listenHITLEvents(m.events)()
	ev, ok := msg.(hitlEventMsg)
	require.True(t, ok)
	next, _ := m.Update(ev)
	return next.(Model)
}

func TestHITLPromptRejectsPlainYesForCritical(t *testing.T) {
	session, _ := newFakeSession(t)
	broker := framework.NewHITLBroker(time.Minute)
	m := NewModel(context.Background(), session, broker)
	defer m.unsub()

	result := askInBackground(broker, framework.ApprovalRequest{
		ID:          "req-1",
		Tool:        "run_command",
		Description: "run command: rm -rf /data",
		Risk:        framework.RiskCritical,
		Phrase:      framework.DefaultConfirmationPhrase,
	})
	m = receiveEvent(t, m)
	require.NotNil(t, m.Pending())
	assert.Contains(t, m.input.Placeholder, framework.DefaultConfirmationPhrase)

	m, cmd := typeAndSubmit(t, m, "yes")
	assert.Nil(t, m.Pending())
	require.NotNil(t, cmd)
	resolved := cmd().(hitlResolvedMsg)
	assert.NoError(t, resolved.err)
	assert.False(t, resolved.approved)
	assert.False(t, <-result)
}

func TestHITLPromptApprovesWithPhrase(t *testing.T) {
	session, _ := newFakeSession(t)
	broker := framework.NewHITLBroker(time.Minute)
	m := NewModel(context.Background(), session, broker)
	defer m.unsub()

	result := askInBackground(broker, framework.ApprovalRequest{
		ID:     "req-2",
		Risk:   framework.RiskCritical,
		Phrase: framework.DefaultConfirmationPhrase,
	})
	m = receiveEvent(t, m)
	m, cmd := typeAndSubmit(t, m, framework.DefaultConfirmationPhrase)
	resolved := cmd().(hitlResolvedMsg)
	assert.True(t, resolved.approved)
	assert.True(t, <-result)

	msgs := m.Messages()
	assert.Equal(t, "Request approved.", msgs[len(msgs)-1].Text)
}

func TestSubmitRunsCommandsAndRequests(t *testing.T) {
	session, root := newFakeSession(t)
	m := NewModel(context.Background(), session, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = next.(Model)

	m, cmd := typeAndSubmit(t, m, "help")
	assert.Nil(t, cmd)
	assert.Contains(t, m.Messages()[0].Text, "Commands:")

	m, cmd = typeAndSubmit(t, m, `write_file(filepath="x.py", content="print(1)")`)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	msg := processCmd(context.Background(), session.Agent(), `write_file(filepath="y.py", content="print(2)")`)()
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.False(t, m.busy)
	last := m.Messages()[len(m.Messages())-1]
	assert.Equal(t, RoleAgent, last.Role)
	assert.FileExists(t, filepath.Join(root, "y.py"))
	assert.Contains(t, m.View(), "offline")
}

func TestQuitCommand(t *testing.T) {
	session, _ := newFakeSession(t)
	m := NewModel(context.Background(), session, framework.NewHITLBroker(time.Minute))
	_, cmd := typeAndSubmit(t, m, "exit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
