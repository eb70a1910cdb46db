package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/lexcodex/codebuddy/agents/parse"
	"github.com/lexcodex/codebuddy/framework"
)

// OfflineModel answers prompts without a network. Its output is a pure
// function of the prompt: a suggested tool call, a completion marker, or a
// short conversational reply.
type OfflineModel struct{}

// Generate implements framework.LanguageModel.
func (OfflineModel) Generate(ctx context.Context, prompt string, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &framework.LLMResponse{
		Text:         Suggest(prompt),
		FinishReason: "offline",
		Metadata:     map[string]interface{}{"provider": "offline"},
	}, nil
}

// OfflineGreeting is returned when no heuristic matches.
const OfflineGreeting = "I'm your coding assistant! I can help with files, git, code execution, and analysis. What would you like me to do?"

var (
	pyFile      = regexp.MustCompile(`[A-Za-z_][\w./\\-]*\.py\b`)
	anyFile     = regexp.MustCompile(`[A-Za-z_][\w./\\-]*\.[A-Za-z]+\b`)
	gitWord     = regexp.MustCompile(`(?i)\bgit\b`)
	commitMsg   = regexp.MustCompile(`(?i)commit\s+["']([^"']+)["']`)
	commitRest  = regexp.MustCompile(`(?i)commit\s+(?:-m\s+)?(.+)`)
	remoteRef   = regexp.MustCompile(`(?i)\b(push|pull)\s+([\w.-]+)(?:\s+([\w./-]+))?`)
	logCount    = regexp.MustCompile(`(?i)\blog\s+(\d+)`)
	branchVerb  = regexp.MustCompile(`(?i)\b(?:create|new|switch|checkout|delete)\s+(?:branch\s+)?([\w./-]+)`)
	addTarget   = regexp.MustCompile(`(?i)git\s+add\s+(\S+)`)
	diffTarget  = regexp.MustCompile(`(?i)git\s+diff\s+(\S+\.[A-Za-z]+)`)
	templateArg = regexp.MustCompile(`(?i)template\s+(\w+)`)
	snippetArg  = regexp.MustCompile(`(?i)snippet\s+(\w+)`)
	runWord     = regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:run|execute)\s+(.+)$`)
)

type offlineRule func(request, lower string) (string, bool)

var offlineRules = []offlineRule{
	gitSuggestion,
	syntaxSuggestion,
	analysisSuggestion,
	codegenSuggestion,
	testSuggestion,
	intentSuggestion,
	commandSuggestion,
}

// Suggest maps a prompt to a response the parser understands. Follow-up
// prompts that carry a previous attempt are answered with a completion
// marker so loops terminate.
func Suggest(prompt string) string {
	if strings.Contains(prompt, framework.PromptPreviousMarker) {
		return framework.TaskCompleteMarker + ": offline mode cannot plan further steps"
	}
	request := extractRequest(prompt)
	lower := strings.ToLower(request)
	for _, rule := range offlineRules {
		if out, ok := rule(request, lower); ok {
			return out
		}
	}
	return OfflineGreeting
}

// extractRequest pulls the text following the request marker, or falls back
// to the whole prompt.
func extractRequest(prompt string) string {
	idx := strings.Index(strings.ToLower(prompt), strings.ToLower(framework.PromptRequestMarker))
	if idx < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[idx+len(framework.PromptRequestMarker):]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.Trim(strings.TrimSpace(rest), `"'`)
}

func call(tool string, kv ...string) string {
	params := framework.Params{}
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = framework.StringValue(kv[i+1])
	}
	return framework.FormatToolCall(tool, params)
}

func pyTarget(request string) string {
	if m := pyFile.FindString(request); m != "" {
		return m
	}
	return "main.py"
}

func gitSuggestion(request, lower string) (string, bool) {
	if !gitWord.MatchString(request) {
		return "", false
	}
	switch {
	case strings.Contains(lower, "status"):
		return call("git_status"), true
	case strings.Contains(lower, "diff"):
		if strings.Contains(lower, "--staged") || strings.Contains(lower, "staged") {
			return framework.FormatToolCall("git_diff", framework.Params{"staged": framework.BoolValue(true)}), true
		}
		if m := diffTarget.FindStringSubmatch(request); m != nil {
			return call("git_diff", "filepath", m[1]), true
		}
		return call("git_diff"), true
	case strings.Contains(lower, "commit"):
		if m := commitMsg.FindStringSubmatch(request); m != nil {
			return call("git_commit", "message", m[1]), true
		}
		if m := commitRest.FindStringSubmatch(request); m != nil {
			return call("git_commit", "message", strings.Trim(strings.TrimSpace(m[1]), `"'`)), true
		}
		return call("git_commit", "message", "Update files"), true
	case strings.Contains(lower, "add"):
		if m := addTarget.FindStringSubmatch(request); m != nil {
			return call("git_add", "filepath", m[1]), true
		}
		return call("git_add", "filepath", "."), true
	case strings.Contains(lower, "push"), strings.Contains(lower, "pull"):
		op := "git_push"
		if strings.Contains(lower, "pull") {
			op = "git_pull"
		}
		if m := remoteRef.FindStringSubmatch(request); m != nil {
			if m[3] != "" {
				return call(op, "remote", m[2], "branch", m[3]), true
			}
			return call(op, "remote", m[2]), true
		}
		return call(op), true
	case strings.Contains(lower, "branch"):
		action := "list"
		switch {
		case strings.Contains(lower, "delete"):
			action = "delete"
		case strings.Contains(lower, "switch"), strings.Contains(lower, "checkout"):
			action = "switch"
		case strings.Contains(lower, "create"), strings.Contains(lower, "new"):
			action = "create"
		}
		if action == "list" {
			return call("git_branch", "action", action), true
		}
		if m := branchVerb.FindStringSubmatch(request); m != nil {
			return call("git_branch", "action", action, "branch_name", m[1]), true
		}
		return "", false
	case strings.Contains(lower, "log"):
		if m := logCount.FindStringSubmatch(request); m != nil {
			return framework.FormatToolCall("git_log", framework.Params{"count": parse.Coerce(m[1])}), true
		}
		return call("git_log"), true
	default:
		return call("git_status"), true
	}
}

func syntaxSuggestion(request, lower string) (string, bool) {
	if !strings.Contains(lower, "check") || !(strings.Contains(lower, "syntax") || strings.Contains(lower, "error")) {
		return "", false
	}
	return call("check_syntax", "filepath", pyTarget(request)), true
}

func analysisSuggestion(request, lower string) (string, bool) {
	switch {
	case strings.Contains(lower, "refactor"):
		return call("refactor_code", "filepath", pyTarget(request)), true
	case strings.Contains(lower, "lint"):
		return call("python_lint", "filepath", pyTarget(request)), true
	case strings.Contains(lower, "complexity"):
		return call("analyze_complexity", "filepath", pyTarget(request)), true
	case strings.Contains(lower, "security"):
		return call("security_scan", "filepath", pyTarget(request)), true
	case strings.Contains(lower, "dependencies"):
		return call("analyze_dependencies"), true
	case strings.Contains(lower, "codebase"):
		return call("analyze_codebase"), true
	case strings.Contains(lower, "quality"):
		return call("code_quality", "filepath", pyTarget(request)), true
	case strings.Contains(lower, "analyze"), strings.Contains(lower, "analyse"):
		return call("code_quality", "filepath", pyTarget(request)), true
	}
	return "", false
}

func codegenSuggestion(request, lower string) (string, bool) {
	switch {
	case strings.Contains(lower, "template"):
		name := "python_script"
		if m := templateArg.FindStringSubmatch(request); m != nil {
			name = m[1]
		}
		if f := anyFile.FindString(request); f != "" {
			return call("code_template", "template_name", name, "filepath", f), true
		}
		return call("code_template", "template_name", name), true
	case strings.Contains(lower, "snippet"):
		kind := "singleton"
		if m := snippetArg.FindStringSubmatch(request); m != nil {
			kind = m[1]
		}
		return call("code_snippet", "snippet_type", kind), true
	}
	return "", false
}

func testSuggestion(request, lower string) (string, bool) {
	if !strings.Contains(lower, "test") || !(strings.Contains(lower, "run") || strings.Contains(lower, "execute")) {
		return "", false
	}
	if f := pyFile.FindString(request); f != "" {
		return call("run_tests", "target", f), true
	}
	return call("run_tests"), true
}

func intentSuggestion(request, lower string) (string, bool) {
	plan, ok := parse.InferIntent(request, parse.IntentTools())
	if !ok {
		return "", false
	}
	return framework.FormatToolCall(plan.Tool, plan.Params), true
}

func commandSuggestion(request, lower string) (string, bool) {
	m := runWord.FindStringSubmatch(request)
	if m == nil {
		return "", false
	}
	cmd := strings.TrimSpace(m[1])
	if strings.HasPrefix(strings.ToLower(cmd), "command ") {
		cmd = strings.TrimSpace(cmd[len("command "):])
	}
	if cmd == "" {
		cmd = "ls"
	}
	return call("run_command", "command", strings.Trim(cmd, "`")), true
}
