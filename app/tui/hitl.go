package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexcodex/codebuddy/app/console"
	"github.com/lexcodex/codebuddy/framework"
)

// ApprovalService is the broker side of the approval round-trip.
type ApprovalService interface {
	Subscribe(buffer int) (<-chan framework.HITLEvent, func())
	Resolve(decision framework.ApprovalDecision) error
}

type hitlEventMsg struct{ event framework.HITLEvent }

func listenHITLEvents(ch <-chan framework.HITLEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return hitlEventMsg{event: ev}
	}
}

type hitlResolvedMsg struct {
	requestID string
	approved  bool
	err       error
}

func resolveHITLCmd(svc ApprovalService, req framework.ApprovalRequest, answer string) tea.Cmd {
	approved := console.Accepts(req, answer)
	return func() tea.Msg {
		err := svc.Resolve(framework.ApprovalDecision{
			RequestID:    req.ID,
			Approved:     approved,
			Confirmation: answer,
			ApprovedBy:   "tui",
		})
		return hitlResolvedMsg{requestID: req.ID, approved: approved, err: err}
	}
}

func (m Model) handleHITLEvent(ev framework.HITLEvent) (tea.Model, tea.Cmd) {
	next := listenHITLEvents(m.events)
	switch ev.Type {
	case framework.HITLEventRequested:
		if ev.Request == nil {
			return m, next
		}
		req := *ev.Request
		m.pending = &req
		if req.RequiresPhrase() {
			m.input.Placeholder = "type " + req.Phrase + " to proceed"
		} else {
			m.input.Placeholder = "y/N"
		}
		m.input.SetValue("")
		m = m.addMessage(RoleSystem, console.RenderRequest(req))
	case framework.HITLEventExpired:
		if m.pending != nil && ev.Request != nil && ev.Request.ID == m.pending.ID {
			m = m.clearPending()
			m = m.addMessage(RoleSystem, "Approval request expired: "+ev.Error)
		}
	}
	return m, next
}

func (m Model) clearPending() Model {
	m.pending = nil
	m.input.Placeholder = "Ask for something, or type help"
	m.input.SetValue("")
	return m
}
