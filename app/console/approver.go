package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/codebuddy/framework"
)

var (
	riskStyles = map[framework.RiskLevel]lipgloss.Style{
		framework.RiskLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		framework.RiskMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		framework.RiskHigh:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		framework.RiskCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
	approvalBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("241")).
				Padding(0, 1)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// RiskLabel renders the level in its colour.
func RiskLabel(risk framework.RiskLevel) string {
	style, ok := riskStyles[risk]
	if !ok {
		return strings.ToUpper(risk.String())
	}
	return style.Render(strings.ToUpper(risk.String()))
}

// Approver asks on a terminal. Critical requests are approved only when the
// exact confirmation phrase is typed; everything else takes y or yes.
type Approver struct {
	in    *bufio.Reader
	out   io.Writer
	mu    sync.Mutex
	once  sync.Once
	lines chan inputLine
}

type inputLine struct {
	text string
	err  error
}

// NewApprover reads answers from in and writes prompts to out.
func NewApprover(in io.Reader, out io.Writer) *Approver {
	return &Approver{in: bufio.NewReader(in), out: out}
}

// AskApproval implements framework.Approver.
func (a *Approver) AskApproval(ctx context.Context, req framework.ApprovalRequest) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, RenderRequest(req))
	if req.RequiresPhrase() {
		fmt.Fprintf(a.out, "Type %q to proceed: ", req.Phrase)
	} else {
		fmt.Fprint(a.out, "Proceed? [y/N]: ")
	}

	answer, err := a.readLine(ctx)
	if err != nil {
		fmt.Fprintln(a.out)
		return false, err
	}
	approved := Accepts(req, answer)
	if !approved {
		fmt.Fprintln(a.out, "Denied.")
	}
	return approved, nil
}

// readLine returns the next line, or ctx.Err() if ctx ends first. A single
// reader goroutine owns the input, so a line typed after a cancelled prompt
// is delivered to the next caller.
func (a *Approver) readLine(ctx context.Context) (string, error) {
	a.once.Do(func() {
		a.lines = make(chan inputLine)
		go a.readLoop()
	})
	select {
	case l := <-a.lines:
		return l.text, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Approver) readLoop() {
	for {
		text, err := a.in.ReadString('\n')
		if err == io.EOF && text != "" {
			a.lines <- inputLine{text: text}
			continue
		}
		a.lines <- inputLine{text, err}
		if err != nil {
			// Later reads keep reporting the terminal error.
			for {
				a.lines <- inputLine{err: err}
			}
		}
	}
}

// Accepts applies the confirmation rule to a typed answer.
func Accepts(req framework.ApprovalRequest, answer string) bool {
	answer = strings.TrimRight(answer, "\r\n")
	if req.RequiresPhrase() {
		return answer == req.Phrase
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// RenderRequest formats an approval request for a terminal.
func RenderRequest(req framework.ApprovalRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Approval required: %s risk\n", RiskLabel(req.Risk))
	fmt.Fprintf(&b, "Operation: %s\n", req.Description)
	for _, key := range req.Details.Keys() {
		fmt.Fprintf(&b, "  %s: %s\n", key, clip(req.Details[key].Text(), 120))
	}
	for _, w := range req.Warnings {
		b.WriteString(warningStyle.Render("! " + w))
		b.WriteString("\n")
	}
	return approvalBoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func clip(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
