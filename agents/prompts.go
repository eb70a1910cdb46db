package agents

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

const resultPreviewChars = 600

// perception is the read-only context snapshot gathered before reasoning.
type perception struct {
	Tools   []framework.Tool
	Recent  string
	Working map[string]string
	Similar []framework.ConversationTurn
	Rules   string
}

// attempt is one action taken earlier in the current turn.
type attempt struct {
	Action string
	Result string
	OK     bool
}

const systemPreamble = `You are CodeBuddy, a coding assistant working inside the user's project.
Choose the single best tool for the next step, or reply conversationally when no tool is needed.`

// buildReasoningPrompt renders the prompt for one loop iteration. The
// previous-attempt section only appears once something has been tried.
func buildReasoningPrompt(input string, p perception, attempts []attempt, iteration, max int) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s \"%s\"\n\n", framework.PromptRequestMarker, input)
	b.WriteString("Available tools:\n")
	b.WriteString(framework.RenderToolsToPrompt(p.Tools))
	b.WriteString("\n")
	if p.Rules != "" {
		b.WriteString(p.Rules)
		b.WriteString("\n")
	}
	if p.Recent != "" {
		b.WriteString(p.Recent)
		b.WriteString("\n")
	}
	if len(p.Similar) > 0 {
		b.WriteString("Similar requests that succeeded before:\n")
		for _, t := range p.Similar {
			fmt.Fprintf(&b, "- %q -> %s\n", t.UserInput, strings.Join(t.Actions, ", "))
		}
		b.WriteString("\n")
	}
	if len(p.Working) > 0 {
		b.WriteString("Working memory:\n")
		keys := make([]string, 0, len(p.Working))
		for k := range p.Working {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, clip(p.Working[k], 200))
		}
		b.WriteString("\n")
	}
	if len(attempts) > 0 {
		fmt.Fprintf(&b, "%s (iteration %d of %d)\n", framework.PromptPreviousMarker, iteration, max)
		for i, a := range attempts {
			status := "failed"
			if a.OK {
				status = "succeeded"
			}
			fmt.Fprintf(&b, "%d. %s %s:\n%s\n", i+1, a.Action, status, clip(a.Result, resultPreviewChars))
		}
		b.WriteString("\n")
	}
	b.WriteString("Instructions:\n")
	b.WriteString("1. If a tool is needed, reply with exactly one tool call.\n")
	b.WriteString("2. If the request is a question or greeting, answer in plain text.\n")
	fmt.Fprintf(&b, "3. If the task is already complete, reply with \"%s: <short explanation>\".\n", framework.TaskCompleteMarker)
	return b.String()
}

// buildDirectPrompt is the lighter prompt used on the direct path.
func buildDirectPrompt(input string, p perception) string {
	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "%s \"%s\"\n\n", framework.PromptRequestMarker, input)
	b.WriteString("Available tools:\n")
	b.WriteString(framework.RenderToolsToPrompt(p.Tools))
	if p.Rules != "" {
		b.WriteString("\n")
		b.WriteString(p.Rules)
	}
	b.WriteString("\nReply with one tool call, or plain text if no tool is needed.\n")
	return b.String()
}

func buildExplainPrompt(input, path, content string) string {
	var b strings.Builder
	b.WriteString("You are CodeBuddy, a coding assistant. Explain the file below to the user.\n")
	b.WriteString("Cover its purpose, its main functions or classes, and anything surprising.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", input)
	fmt.Fprintf(&b, "File %s:\n```\n%s\n```\n", path, clip(content, 12000))
	return b.String()
}

func buildLessonPrompt(turn framework.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Summarise in one sentence what should be remembered from this interaction.\n\n")
	fmt.Fprintf(&b, "Request: %s\n", turn.UserInput)
	fmt.Fprintf(&b, "Actions: %s\n", strings.Join(turn.Actions, ", "))
	fmt.Fprintf(&b, "Success: %t\n", turn.Success)
	return b.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
