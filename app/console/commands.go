package console

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
)

// Session is what the built-in commands inspect.
type Session interface {
	Tools() []framework.Tool
	Agent() *agents.CodingAgent
	Provider() string
}

// CommandResult is the outcome of a built-in command.
type CommandResult struct {
	Output string
	Quit   bool
	Clear  bool
	// Debug toggles verbose output when non-nil.
	Debug *bool
}

type command struct {
	names []string
	help  string
	run   func(ctx context.Context, s Session, state *commandState) CommandResult
}

type commandState struct {
	debug bool
}

var helpNames = []string{"help", "?"}

var commands = []command{
	{[]string{"tools"}, "list available tools by category", runTools},
	{[]string{"history"}, "show this session's turns", runHistory},
	{[]string{"approvals"}, "show approval decisions", runApprovals},
	{[]string{"status"}, "show model and session details", runStatus},
	{[]string{"debug"}, "toggle verbose output", runDebug},
	{[]string{"clear"}, "clear the screen", func(context.Context, Session, *commandState) CommandResult {
		return CommandResult{Clear: true}
	}},
	{[]string{"exit", "quit", "bye"}, "leave the session", func(context.Context, Session, *commandState) CommandResult {
		return CommandResult{Output: "Goodbye!", Quit: true}
	}},
}

// Dispatcher resolves built-in commands. Input may carry a leading slash.
type Dispatcher struct {
	state commandState
}

// Handle runs input as a built-in command. ok is false when input is a
// request for the agent.
func (d *Dispatcher) Handle(ctx context.Context, s Session, input string) (CommandResult, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	for _, n := range helpNames {
		if n == name {
			return helpText(), true
		}
	}
	for _, c := range commands {
		for _, n := range c.names {
			if n == name {
				return c.run(ctx, s, &d.state), true
			}
		}
	}
	return CommandResult{}, false
}

// Debug reports whether verbose output is on.
func (d *Dispatcher) Debug() bool { return d.state.debug }

func helpText() CommandResult {
	var b strings.Builder
	b.WriteString("Commands:\n")
	fmt.Fprintf(&b, "  %-18s %s\n", strings.Join(helpNames, ", "), "show this help")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-18s %s\n", strings.Join(c.names, ", "), c.help)
	}
	b.WriteString("\nAnything else is sent to the assistant, for example:\n")
	b.WriteString("  read main.py\n  create a flask app in app.py\n  git status\n")
	b.WriteString(`  write_file(filepath="hello.py", content="print('hi')")`)
	return CommandResult{Output: b.String()}
}

func runTools(_ context.Context, s Session, _ *commandState) CommandResult {
	byCategory := map[string][]framework.Tool{}
	for _, t := range s.Tools() {
		byCategory[t.Category()] = append(byCategory[t.Category()], t)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	var b strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&b, "%s:\n", c)
		for _, t := range byCategory[c] {
			fmt.Fprintf(&b, "  %-22s %s\n", t.Name(), t.Description())
		}
	}
	return CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func runHistory(_ context.Context, s Session, _ *commandState) CommandResult {
	turns := s.Agent().History()
	if len(turns) == 0 {
		return CommandResult{Output: "No turns yet."}
	}
	var b strings.Builder
	for i, t := range turns {
		mark := "x"
		if t.Success {
			mark = "ok"
		}
		fmt.Fprintf(&b, "%d. [%s] %s %q", i+1, mark, t.Timestamp.Local().Format(time.Kitchen), t.UserInput)
		if len(t.Actions) > 0 {
			fmt.Fprintf(&b, " -> %s", strings.Join(t.Actions, ", "))
		}
		b.WriteString("\n")
	}
	return CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func runApprovals(ctx context.Context, s Session, _ *commandState) CommandResult {
	records, err := s.Agent().ApprovalHistory(ctx)
	if err != nil {
		return CommandResult{Output: "Approval history unavailable: " + err.Error()}
	}
	if len(records) == 0 {
		return CommandResult{Output: "No approvals requested yet."}
	}
	var b strings.Builder
	for _, r := range records {
		verdict := "denied"
		if r.Approved {
			verdict = "approved"
		}
		fmt.Fprintf(&b, "%s %-8s %-8s %s\n", r.Timestamp.Local().Format(time.Stamp), RiskLabel(r.Risk), verdict, r.Description)
	}
	return CommandResult{Output: strings.TrimRight(b.String(), "\n")}
}

func runStatus(_ context.Context, s Session, state *commandState) CommandResult {
	agent := s.Agent()
	summary := ""
	if sm, ok := agent.Memory.(*framework.SessionMemory); ok {
		summary = sm.Summary()
	}
	return CommandResult{Output: fmt.Sprintf("Provider: %s\nSession: %s\nTools: %d\nDebug: %t\n%s",
		s.Provider(), agent.SessionID, len(s.Tools()), state.debug, summary)}
}

func runDebug(_ context.Context, _ Session, state *commandState) CommandResult {
	state.debug = !state.debug
	on := state.debug
	label := "off"
	if on {
		label = "on"
	}
	return CommandResult{Output: "Debug output " + label + ".", Debug: &on}
}
