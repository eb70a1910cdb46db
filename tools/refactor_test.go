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

	"github.com/lexcodex/codebuddy/framework"
)

const messySource = `"""Helpers."""
import sys
import requests
import os
from typing import List, Dict
import os

def calc(values: List[int]):
    return sum(values) + len(sys.argv)


print(calc([1]))
`

func TestRefactorAutoRewritesFileAndKeepsBackup(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "app.py", messySource)
	tool := &RefactorTool{Workspace: ws}

	res, err := tool.Execute(context.Background(), framework.Params{"filepath": str("app.py")})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	want := `"""Helpers."""
from typing import List
import sys


def calculate(values: List[int]):
    """Calculate."""
    return sum(values) + len(sys.argv)


print(calculate([1]))
`
	got, err := os.ReadFile(filepath.Join(ws.Root, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, want, string(got))

	backup, err := os.ReadFile(filepath.Join(ws.Root, "app.py.bak"))
	require.NoError(t, err)
	assert.Equal(t, messySource, string(backup))

	assert.Equal(t, []string{
		"removed 3 unused or duplicate import(s)",
		"grouped and sorted imports",
		"renamed calc() to calculate()",
		"added 1 docstring(s)",
	}, res.Data["changes"])
	assert.Contains(t, res.Message, "Backup: app.py.bak")
}

func TestRefactorSingleKindAndDryRun(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "app.py", messySource)
	tool := &RefactorTool{Workspace: ws}

	res, err := tool.Execute(context.Background(), framework.Params{
		"filepath":      str("app.py"),
		"refactor_type": str("improve_naming"),
		"dry_run":       framework.BoolValue(true),
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, []string{"renamed calc() to calculate()"}, res.Data["changes"])
	assert.Contains(t, res.Message, "def calculate(values")
	assert.Contains(t, res.Message, "import requests")

	got, err := os.ReadFile(filepath.Join(ws.Root, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, messySource, string(got))
	assert.NoFileExists(t, filepath.Join(ws.Root, "app.py.bak"))
}

func TestRefactorLeavesCleanFileAlone(t *testing.T) {
	ws := newTestWorkspace(t)
	clean := "import json\n\n\ndef dump(x):\n    \"\"\"Dump.\"\"\"\n    return json.dumps(x)\n"
	writeWorkspaceFile(t, ws, "ok.py", clean)

	res, err := (&RefactorTool{Workspace: ws}).Execute(context.Background(), framework.Params{"filepath": str("ok.py")})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Contains(t, res.Message, "No refactoring needed")
	assert.NoFileExists(t, filepath.Join(ws.Root, "ok.py.bak"))
}

func TestRefactorRejectsBadInput(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "notes.txt", "hello\n")
	writeWorkspaceFile(t, ws, "app.py", "x = 1\n")
	tool := &RefactorTool{Workspace: ws}

	res, err := tool.Execute(context.Background(), framework.Params{"filepath": str("notes.txt")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "only Python files")

	res, err = tool.Execute(context.Background(), framework.Params{"filepath": str("app.py"), "refactor_type": str("rewrite_all")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "optimize_imports")
}

func TestRefactorNamingSkipsTakenNames(t *testing.T) {
	lines := strings.Split("def calc(a):\n    return a\n\ndef calculate(a):\n    return calc(a)\n", "\n")
	out, changes := improveNaming(lines)
	assert.Empty(t, changes)
	assert.Equal(t, lines, out)
}

func TestAddDocstringsSkipsDocumentedAndDunder(t *testing.T) {
	src := "class Shape:\n    def __init__(self):\n        self.n = 0\n\n    def area(self):\n        '''Area.'''\n        return 0\n"
	out, changes := addDocstrings(strings.Split(src, "\n"))
	assert.Equal(t, []string{"added 1 docstring(s)"}, changes)
	assert.Equal(t, `    """Shape class."""`, out[1])
	assert.Equal(t, "    def __init__(self):", out[2])
}

func TestCodebaseAnalysisAggregatesFolder(t *testing.T) {
	ws := newTestWorkspace(t)
	writeWorkspaceFile(t, ws, "app.py", "import requests\n\n\ndef main():\n    \"\"\"Run.\"\"\"\n    return requests.get(\"x\")\n")
	var branchy strings.Builder
	branchy.WriteString("def branchy(a):\n")
	for i := 0; i < 11; i++ {
		fmt.Fprintf(&branchy, "    if a == %d:\n        return %d\n", i, i)
	}
	writeWorkspaceFile(t, ws, "complex.py", branchy.String())
	writeWorkspaceFile(t, ws, "tests/test_app.py", "def test_main():\n    assert True\n")

	res, err := (&CodebaseTool{Workspace: ws}).Execute(context.Background(), framework.Params{})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	r := res.Data["report"].(CodebaseReport)
	assert.Equal(t, 3, r.Files)
	assert.Equal(t, []string{"tests/test_app.py"}, r.TestFiles)
	assert.False(t, r.HasManifest)
	assert.Equal(t, []string{"requests"}, r.ThirdParty)
	assert.Equal(t, []string{"complex.py:branchy (12)"}, r.Complex)
	assert.Contains(t, r.Recommendations, "refactor the high-complexity functions")
	assert.Contains(t, r.Recommendations, "add requirements.txt for dependency management")
	assert.NotContains(t, r.Recommendations, "add a test suite")
	assert.Contains(t, res.Message, "3 Python file(s), 1 test file(s)")
}

func TestCodebaseAnalysisEmptyAndMissingFolder(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, os.MkdirAll(filepath.Join(ws.Root, "docs"), 0o755))
	tool := &CodebaseTool{Workspace: ws}

	res, err := tool.Execute(context.Background(), framework.Params{"folderpath": str("docs")})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "No Python files found in docs")

	res, err = tool.Execute(context.Background(), framework.Params{"folderpath": str("nowhere")})
	require.NoError(t, err)
	assert.False(t, res.Success)
}
