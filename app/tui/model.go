package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/codebuddy/app/console"
	"github.com/lexcodex/codebuddy/framework"
)

// Run starts the full-screen chat. Approvals reach the UI through broker,
// which must be the approver of session's gate.
func Run(ctx context.Context, session console.Session, broker ApprovalService) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	program := tea.NewProgram(
		NewModel(ctx, session, broker),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)
	_, err := program.Run()
	return err
}

// Model implements tea.Model for the chat feed, prompt bar and status bar.
type Model struct {
	ctx     context.Context
	session console.Session
	hitl    ApprovalService
	events  <-chan framework.HITLEvent
	unsub   func()

	feed    viewport.Model
	input   textinput.Model
	spinner spinner.Model

	commands console.Dispatcher
	messages []Message
	pending  *framework.ApprovalRequest
	busy     bool
	started  time.Time
	last     time.Duration

	width  int
	height int
	ready  bool
}

// MessageRole identifies the author of a feed entry.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one entry in the feed.
type Message struct {
	Role      MessageRole
	Text      string
	Timestamp time.Time
}

// NewModel builds the initial state.
func NewModel(ctx context.Context, session console.Session, hitl ApprovalService) Model {
	input := textinput.New()
	input.Placeholder = "Ask for something, or type help"
	input.Prompt = ""
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:     ctx,
		session: session,
		hitl:    hitl,
		input:   input,
		spinner: sp,
		feed:    viewport.New(80, 20),
	}
	if hitl != nil {
		m.events, m.unsub = hitl.Subscribe(16)
	}
	return m
}

func (m Model) addMessage(role MessageRole, text string) Model {
	m.messages = append(m.messages, Message{Role: role, Text: text, Timestamp: time.Now()})
	m.feed.SetContent(m.renderMessages())
	m.feed.GotoBottom()
	return m
}

// Messages returns the feed contents.
func (m Model) Messages() []Message {
	return append([]Message(nil), m.messages...)
}

// Pending returns the approval awaiting an answer, if any.
func (m Model) Pending() *framework.ApprovalRequest {
	return m.pending
}
