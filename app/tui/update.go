package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/app/console"
)

type responseMsg struct {
	resp *agents.Response
	err  error
	took time.Duration
}

func processCmd(ctx context.Context, agent *agents.CodingAgent, input string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		resp, err := agent.Process(ctx, input)
		return responseMsg{resp: resp, err: err, took: time.Since(start)}
	}
}

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenHITLEvents(m.events))
}

// Update applies incoming Bubble Tea messages to the Model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m.quit()
		case "ctrl+l":
			m.messages = nil
			m.feed.SetContent(m.renderMessages())
			return m, nil
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.feed, cmd = m.feed.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case responseMsg:
		return m.handleResponse(msg), nil
	case hitlEventMsg:
		return m.handleHITLEvent(msg.event)
	case hitlResolvedMsg:
		if msg.err != nil {
			return m.addMessage(RoleSystem, errorStyle.Render("approval failed: "+msg.err.Error())), nil
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	statusBarHeight := 1
	promptBarHeight := 1
	m.feed.Width = msg.Width
	m.feed.Height = max(1, msg.Height-statusBarHeight-promptBarHeight)
	m.input.Width = max(10, msg.Width-4)
	m.ready = true
	m.feed.SetContent(m.renderMessages())
	return m
}

// submit routes the prompt: an approval answer, a built-in command, or a
// request for the agent.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if m.pending != nil {
		req := *m.pending
		m = m.clearPending()
		verdict := "denied"
		if console.Accepts(req, value) {
			verdict = "approved"
		}
		m = m.addMessage(RoleSystem, "Request "+verdict+".")
		return m, resolveHITLCmd(m.hitl, req, value)
	}
	text := strings.TrimSpace(value)
	if text == "" {
		return m, nil
	}
	m.input.SetValue("")
	if res, ok := m.commands.Handle(m.ctx, m.session, text); ok {
		if res.Quit {
			return m.quit()
		}
		if res.Clear {
			m.messages = nil
			m.feed.SetContent(m.renderMessages())
		}
		if res.Output != "" {
			m = m.addMessage(RoleSystem, res.Output)
		}
		return m, nil
	}
	if m.busy {
		return m.addMessage(RoleSystem, "Still working on the previous request."), nil
	}
	m = m.addMessage(RoleUser, text)
	m.busy = true
	m.started = time.Now()
	return m, tea.Batch(processCmd(m.ctx, m.session.Agent(), text), m.spinner.Tick)
}

func (m Model) handleResponse(msg responseMsg) Model {
	m.busy = false
	m.last = msg.took
	if msg.err != nil {
		return m.addMessage(RoleSystem, errorStyle.Render("error: "+msg.err.Error()))
	}
	return m.addMessage(RoleAgent, console.RenderResponse(msg.resp, m.commands.Debug()))
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.unsub != nil {
		m.unsub()
	}
	return m, tea.Quit
}
