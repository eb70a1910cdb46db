package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/agents/parse"
	"github.com/lexcodex/codebuddy/framework"
)

func promptFor(request string) string {
	return "You are a coding assistant.\n" + framework.PromptRequestMarker + ` "` + request + "\"\nRespond with one tool call."
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		request string
		want    string
	}{
		{"git status", `git_status()`},
		{"show the git diff --staged", `git_diff(staged=true)`},
		{`git commit "Add parser"`, `git_commit(message="Add parser")`},
		{"git add src/app.py", `git_add(filepath="src/app.py")`},
		{"git push origin feature", `git_push(branch="feature", remote="origin")`},
		{"git log 5", `git_log(count=5)`},
		{"git branch", `git_branch(action="list")`},
		{"git branch delete old", `git_branch(action="delete", branch_name="old")`},
		{"check syntax of app.py", `check_syntax(filepath="app.py")`},
		{"lint utils.py", `python_lint(filepath="utils.py")`},
		{"security scan", `security_scan(filepath="main.py")`},
		{"analyze dependencies", `analyze_dependencies()`},
		{"analyze the whole codebase", `analyze_codebase()`},
		{"refactor utils.py", `refactor_code(filepath="utils.py")`},
		{"snippet decorator", `code_snippet(snippet_type="decorator")`},
		{"run the tests", `run_tests()`},
		{"delete main.py", `delete_file(filepath="main.py")`},
		{"create a folder called docs", `create_folder(folderpath="docs")`},
		{"run ls -la", `run_command(command="ls -la")`},
		{"how are you today", OfflineGreeting},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			assert.Equal(t, tt.want, Suggest(promptFor(tt.request)))
		})
	}
}

func TestSuggestIsParseable(t *testing.T) {
	known := map[string]struct{}{}
	for _, name := range []string{"write_file", "read_file", "git_commit", "run_command"} {
		known[name] = struct{}{}
	}
	for _, request := range []string{"create hello.py", "read notes.txt", `git commit "fix: quoting"`, "run echo hi"} {
		plan := parse.Parse(Suggest(promptFor(request)), known, "")
		assert.Equal(t, framework.PlanTool, plan.Kind, request)
		assert.Equal(t, framework.StrategyWholeMatch, plan.Strategy, request)
	}
}

func TestSuggestCompletesFollowUps(t *testing.T) {
	prompt := promptFor("delete main.py") + "\n" + framework.PromptPreviousMarker + " delete_file -> ok"
	assert.Contains(t, Suggest(prompt), framework.TaskCompleteMarker)
}

func TestSuggestWithoutMarkerUsesWholePrompt(t *testing.T) {
	assert.Equal(t, `git_status()`, Suggest("git status"))
}

func TestOfflineModelGenerate(t *testing.T) {
	resp, err := OfflineModel{}.Generate(context.Background(), promptFor("git status"), nil)
	require.NoError(t, err)
	assert.Equal(t, "git_status()", resp.Text)
	assert.Equal(t, "offline", resp.Metadata["provider"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = OfflineModel{}.Generate(ctx, "x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
