package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View composes the scrollable feed, prompt bar, and status bar.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.feed.View(), m.renderPromptBar(), m.renderStatusBar())
}

func (m Model) renderMessages() string {
	if len(m.messages) == 0 {
		return welcomeStyle.Width(m.width).Render("Welcome! Type a request, or help for commands.")
	}
	rendered := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		rendered = append(rendered, renderMessage(msg, m.width))
	}
	return strings.Join(rendered, "\n\n")
}

func renderMessage(msg Message, width int) string {
	var label string
	switch msg.Role {
	case RoleUser:
		label = userStyle.Render("you")
	case RoleAgent:
		label = agentStyle.Render("codebuddy")
	default:
		return systemStyle.Render(msg.Text)
	}
	body := textStyle.Width(max(20, width-2)).Render(msg.Text)
	return label + dimStyle.Render(" "+msg.Timestamp.Format("15:04")) + "\n" + body
}

func (m Model) renderPromptBar() string {
	prefix := "> "
	hint := dimStyle.Render(" enter to send | ctrl+l to clear | ctrl+c to quit")
	switch {
	case m.pending != nil:
		prefix = "? "
		hint = dimStyle.Render(" answer the approval request")
	case m.busy:
		prefix = m.spinner.View() + " "
		hint = dimStyle.Render(" thinking")
	}
	return promptBarStyle.Width(m.width).Render(prefix + m.input.View() + hint)
}

func (m Model) renderStatusBar() string {
	left := fmt.Sprintf("%s | session %s", m.session.Provider(), truncate(m.session.Agent().SessionID, 8))
	right := ""
	if m.last > 0 {
		right = successStyle.Render("last " + m.last.Round(100*time.Millisecond).String())
	}
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 0 {
		padding = 0
	}
	return statusStyle.Render(left + strings.Repeat(" ", padding) + right)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
