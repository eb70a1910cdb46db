package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/codebuddy/framework"
)

func writeWorkspaceFile(t *testing.T, ws Workspace, rel, content string) {
	t.Helper()
	full := filepath.Join(ws.Root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func codes(diags []protocol.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, fmt.Sprint(d.Code))
	}
	return out
}

const lintSample = "import os\nimport sys\n\ndef main():   \n\ttry:\n\t\tprint(sys.argv)\n\texcept:\n\t\tpass\n"

func TestPythonLintFindsIssues(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "app.py", lintSample)
	res, err := (&PythonLintTool{Workspace: ws}).Execute(context.Background(), framework.Params{"filepath": str("app.py")})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	diags := res.Data["diagnostics"].([]protocol.Diagnostic)
	got := codes(diags)
	assert.Contains(t, got, "F401")
	assert.Contains(t, got, "W291")
	assert.Contains(t, got, "W191")
	assert.Contains(t, got, "E722")
	assert.NotContains(t, got, "W292")
	for _, d := range diags {
		if d.Code == "F401" {
			assert.Equal(t, uint32(0), d.Range.Start.Line)
			assert.Contains(t, d.Message, "'os'")
		}
	}
	assert.Contains(t, res.Message, "app.py:1:1: warning [F401]")
}

func TestPythonLintCleanFile(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "ok.py", "import json\n\n\ndef dump(x):\n    return json.dumps(x)\n")
	res, err := (&PythonLintTool{Workspace: ws}).Execute(context.Background(), framework.Params{"filepath": str("ok.py")})
	require.NoError(t, err)
	assert.Equal(t, "No lint issues in ok.py", res.Message)
}

func TestSecurityScanFlagsRiskyCalls(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "danger.py", strings.Join([]string{
		"import subprocess, yaml",
		`password = "hunter2"`,
		"result = eval(user_input)",
		"subprocess.run(cmd, shell=True)",
		"cfg = yaml.load(fh)",
		"safe = yaml.load(fh, Loader=yaml.SafeLoader)",
		"# eval(x) in a comment is fine",
		"",
	}, "\n"))
	res, err := (&SecurityScanTool{Workspace: ws}).Execute(context.Background(), framework.Params{"filepath": str("danger.py")})
	require.NoError(t, err)
	diags := res.Data["diagnostics"].([]protocol.Diagnostic)
	assert.Equal(t, []string{"S105", "S307", "S602", "S506"}, codes(diags))
	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
}

func TestComplexityPerFunction(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "calc.py", strings.Join([]string{
		"def simple(a, b):",
		`    """Add."""`,
		"    return a + b",
		"",
		"def branchy(x):",
		"    if x > 0 and x < 10:",
		"        return 1",
		"    elif x == 0:",
		"        return 0",
		"    for i in range(3):",
		"        while i:",
		"            i -= 1",
		"    return -1",
		"",
	}, "\n"))
	res, err := (&ComplexityTool{Workspace: ws}).Execute(context.Background(), framework.Params{"filepath": str("calc.py")})
	require.NoError(t, err)
	funcs := res.Data["functions"].([]FunctionComplexity)
	require.Len(t, funcs, 2)
	assert.Equal(t, FunctionComplexity{Name: "simple", Line: 1, Lines: 4, Complexity: 1, Docstring: true}, funcs[0])
	assert.Equal(t, "branchy", funcs[1].Name)
	assert.Equal(t, 6, funcs[1].Complexity)
	assert.Equal(t, "B", funcs[1].Rating())
}

func TestDependencyAnalysisComparesRequirements(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "requirements.txt", "requests>=2.0\n# comment\nPyYAML\n")
	writeWorkspaceFile(t, ws, "app.py", "import os\nimport requests\nfrom flask import Flask\nimport helpers\nfrom . import local\n")
	writeWorkspaceFile(t, ws, "helpers.py", "import numpy as np\n")
	res, err := (&DependencyTool{Workspace: ws}).Execute(context.Background(), framework.Params{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"flask", "numpy", "requests"}, res.Data["third_party"])
	assert.Equal(t, []string{"flask", "numpy"}, res.Data["missing"])
}

func TestCodeQualityScores(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "good.py", "def add(a, b):\n    \"\"\"Add two numbers.\"\"\"\n    return a + b\n")
	writeWorkspaceFile(t, ws, "bad.py", "import os\ndef run(cmd):\n    return eval(cmd)\n")
	tool := &CodeQualityTool{Workspace: ws}

	res, err := tool.Execute(context.Background(), framework.Params{"filepath": str("good.py")})
	require.NoError(t, err)
	good := res.Data["report"].(QualityReport)
	assert.Equal(t, 100, good.Score)

	res, err = tool.Execute(context.Background(), framework.Params{"filepath": str("bad.py")})
	require.NoError(t, err)
	bad := res.Data["report"].(QualityReport)
	assert.Less(t, bad.Score, good.Score)
	assert.Equal(t, 1, bad.SecurityIssues)
	assert.NotEmpty(t, bad.Recommendations)
}

func TestCodeTemplateWritesNewFileOnly(t *testing.T) {
	ws := newTestWorkspace(t)
	tool := &CodeTemplateTool{Workspace: ws}
	res, err := tool.Execute(context.Background(), framework.Params{"template_name": str("test_file"), "filepath": str("tests/test_calc.py")})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	data, err := os.ReadFile(filepath.Join(ws.Root, "tests", "test_calc.py"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "class TestTestCalc(unittest.TestCase)")

	res, err = tool.Execute(context.Background(), framework.Params{"template_name": str("test_file"), "filepath": str("tests/test_calc.py")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "already exists")

	res, err = tool.Execute(context.Background(), framework.Params{"template_name": str("nope")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "python_script")
}

func TestCodeSnippetRendersNames(t *testing.T) {
	tool := &CodeSnippetTool{}
	res, err := tool.Execute(context.Background(), framework.Params{"snippet_type": str("singleton"), "name": str("config_store")})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Data["code"], "class ConfigStore:")

	res, err = tool.Execute(context.Background(), framework.Params{"snippet_type": str("decorator")})
	require.NoError(t, err)
	assert.Contains(t, res.Data["code"], "def decorator(func):")
}
