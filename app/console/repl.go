package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/app/runtime"
	"github.com/lexcodex/codebuddy/framework"
)

var (
	bannerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// RuntimeSession adapts a runtime to the command Session.
type RuntimeSession struct {
	Runtime *runtime.Runtime
}

func (s RuntimeSession) Tools() []framework.Tool    { return s.Runtime.Tools.All() }
func (s RuntimeSession) Agent() *agents.CodingAgent { return s.Runtime.Agent }
func (s RuntimeSession) Provider() string           { return s.Runtime.ProviderLabel() }

// REPL is the line-oriented chat loop. It reads through the approver so
// requests and approval answers share one input buffer.
type REPL struct {
	Session  Session
	Approver *Approver
	Out      io.Writer

	commands Dispatcher
}

// Run loops until exit, EOF or ctx ends.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.Out, bannerStyle.Render("CodeBuddy")+dimStyle.Render(fmt.Sprintf(" · %s · type help for commands", r.Session.Provider())))
	for {
		fmt.Fprint(r.Out, promptStyle.Render("you> "))
		line, err := r.Approver.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(r.Out)
				return nil
			}
			return err
		}
		quit, err := r.Handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// Handle processes one line of input and reports whether the session ends.
func (r *REPL) Handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if res, ok := r.commands.Handle(ctx, r.Session, line); ok {
		if res.Clear {
			fmt.Fprint(r.Out, "\033[H\033[2J")
		}
		if res.Output != "" {
			fmt.Fprintln(r.Out, res.Output)
		}
		return res.Quit, nil
	}
	resp, err := r.Session.Agent().Process(ctx, line)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(r.Out, RenderResponse(resp, r.commands.Debug()))
	return false, nil
}

// RenderResponse formats an agent response for a terminal.
func RenderResponse(resp *agents.Response, debug bool) string {
	var b strings.Builder
	switch resp.Outcome {
	case agents.OutcomeSuccess:
		b.WriteString(successStyle.Render("✓ "))
	case agents.OutcomeToolFailure, agents.OutcomeParseError, agents.OutcomeUnavailable:
		b.WriteString(errorStyle.Render("✗ "))
	case agents.OutcomeCancelled:
		b.WriteString(dimStyle.Render("⊘ "))
	}
	b.WriteString(resp.Message)
	if debug {
		fmt.Fprintf(&b, "\n%s", dimStyle.Render(fmt.Sprintf("[mode=%s outcome=%s iterations=%d plan=%s risk=%s]",
			resp.Mode, resp.Outcome, resp.Iterations, resp.Plan.Describe(), resp.Risk)))
	}
	return b.String()
}
