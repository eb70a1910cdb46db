package parse

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexcodex/codebuddy/framework"
)

var knownTools = map[string]struct{}{
	"write_file":    {},
	"read_file":     {},
	"delete_file":   {},
	"delete_folder": {},
	"create_folder": {},
	"list_files":    {},
	"run_python":    {},
	"run_command":   {},
	"git_status":    {},
}

func TestParseWholeMatch(t *testing.T) {
	raw := `write_file(filepath="new_file.py", content="""print(1)""")`
	got := Parse(raw, knownTools, "make a file")
	want := framework.ToolPlan("write_file", framework.Params{
		"filepath": str("new_file.py"),
		"content":  str("print(1)"),
	}, framework.StrategyWholeMatch)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestParseSingleKeyCall(t *testing.T) {
	got := Parse(`read_file(filepath="value")`, knownTools, "")
	require.Equal(t, framework.PlanTool, got.Kind)
	assert.Equal(t, "read_file", got.Tool)
	if diff := cmp.Diff(framework.Params{"filepath": str("value")}, got.Params); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestParseWholeMatchToleratesUnbalancedQuotes(t *testing.T) {
	got := Parse(`write_file(filepath="notes.txt", content=it's done)`, knownTools, "")
	require.Equal(t, framework.PlanTool, got.Kind)
	assert.Equal(t, framework.StrategyWholeMatch, got.Strategy)
	assert.Equal(t, "notes.txt", got.Params.String("filepath"))
}

func TestParseEmbeddedScan(t *testing.T) {
	raw := "Sure! First I'd print(x) but really you want:\n```\nwrite_file(filepath=\"a.py\", content=\"print(f(1))\")\n```\nLet me know."
	got := Parse(raw, knownTools, "")
	require.Equal(t, framework.PlanTool, got.Kind)
	assert.Equal(t, framework.StrategyEmbedded, got.Strategy)
	assert.Equal(t, "write_file", got.Tool)
	assert.Equal(t, "print(f(1))", got.Params.String("content"))
}

func TestParseEmbeddedScanPicksLeftmostKnown(t *testing.T) {
	raw := `I will run read_file(filepath="a.py") and then git_status()`
	got := Parse(raw, knownTools, "")
	assert.Equal(t, "read_file", got.Tool)
}

func TestParseUnknownWholeMatchFallsThrough(t *testing.T) {
	got := Parse(`explode(target="everything")`, knownTools, "hello")
	assert.Equal(t, framework.PlanConversation, got.Kind)
	assert.Equal(t, `explode(target="everything")`, got.Text)
}

func TestParseConversation(t *testing.T) {
	got := Parse("Hello! I can help with that.", knownTools, "hi there")
	want := framework.ConversationPlan("Hello! I can help with that.")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJSONBlock(t *testing.T) {
	raw := "Here:\n```json\n{\"tool\": \"read_file\", \"arguments\": {\"file_path\": \"main.py\"}}\n```"
	got := Parse(raw, knownTools, "")
	require.Equal(t, framework.PlanTool, got.Kind)
	assert.Equal(t, framework.StrategyJSON, got.Strategy)
	assert.Equal(t, "main.py", got.Params.String("filepath"))

	bare := Parse(`{"name": "git_status", "args": {}}`, knownTools, "")
	assert.Equal(t, "git_status", bare.Tool)
}

func TestParseFallsBackToIntent(t *testing.T) {
	got := Parse("I'm not able to do that directly.", knownTools, "delete main.py")
	want := framework.ToolPlan("delete_file", framework.Params{"filepath": str("main.py")}, framework.StrategyIntent)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyResponse(t *testing.T) {
	got := Parse("   ", knownTools, "thanks")
	assert.Equal(t, framework.PlanError, got.Kind)

	disabled := (&Parser{Known: knownTools, DisableIntent: true}).Parse("ok", "delete main.py")
	assert.Equal(t, framework.PlanConversation, disabled.Kind)
}

func TestParseAlwaysYieldsOneVariant(t *testing.T) {
	inputs := []string{
		"", "(", ")", "((((", "read_file(", "read_file)", `read_file(filepath="`,
		`"""`, "write_file(content=\"\"\"unterminated", "9abc(x=1)", "a(b(c(d())))",
		"read_file(filepath='a.py'", `{"tool": 3}`, "```json\n{bad}\n```", "日本語(テキスト)",
	}
	for _, in := range inputs {
		plan := Parse(in, knownTools, in)
		switch plan.Kind {
		case framework.PlanTool:
			_, ok := knownTools[plan.Tool]
			assert.True(t, ok, "tool plan must name a known tool for %q", in)
			assert.NotNil(t, plan.Params)
		case framework.PlanConversation, framework.PlanError:
		default:
			t.Fatalf("unexpected kind %v for %q", plan.Kind, in)
		}
	}
}

type schemaTool struct {
	name   string
	params []framework.ToolParameter
}

func (s schemaTool) Name() string                          { return s.name }
func (s schemaTool) Description() string                   { return s.name }
func (s schemaTool) Category() string                      { return "test" }
func (s schemaTool) Parameters() []framework.ToolParameter { return s.params }
func (s schemaTool) IsAvailable(ctx context.Context) bool  { return true }
func (s schemaTool) Execute(ctx context.Context, p framework.Params) (*framework.ToolResult, error) {
	return framework.Succeeded("ok", nil), nil
}

func TestParserValidatesAgainstSchema(t *testing.T) {
	reg := framework.NewToolRegistry()
	require.NoError(t, reg.Register(schemaTool{name: "read_file", params: []framework.ToolParameter{
		framework.Param("filepath", framework.KindString, true, "file"),
	}}))
	require.NoError(t, reg.Register(schemaTool{name: "list_files", params: []framework.ToolParameter{
		framework.Param("folderpath", framework.KindString, false, "dir").WithDefault(framework.StringValue(".")),
	}}))
	p := NewParser(reg)

	missing := p.Parse(`read_file()`, "")
	require.Equal(t, framework.PlanError, missing.Kind)
	assert.Contains(t, missing.Text, "filepath")

	swapped := p.Parse(`read_file(path="main.py")`, "")
	require.Equal(t, framework.PlanTool, swapped.Kind)
	assert.Equal(t, "main.py", swapped.Params.String("filepath"))
	assert.False(t, swapped.Params.Has("folderpath"))

	defaults := p.Parse(`list_files()`, "")
	assert.Equal(t, ".", defaults.Params.String("folderpath"))
}
