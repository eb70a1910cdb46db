package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

// DefaultExecTimeout bounds code execution tools.
const DefaultExecTimeout = 30 * time.Second

// execBase holds what every process-backed tool needs.
type execBase struct {
	Workspace Workspace
	Runner    framework.CommandRunner
	Timeout   time.Duration
}

func (b execBase) run(ctx context.Context, args []string, input string) (string, string, error) {
	if b.Runner == nil {
		return "", "", fmt.Errorf("command runner missing")
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return b.Runner.Run(ctx, framework.CommandRequest{
		Workdir: b.Workspace.Root,
		Args:    args,
		Input:   input,
		Timeout: timeout,
	})
}

// processResult converts runner output into a tool result. Timeouts and
// non-zero exits are failures carrying whatever output was captured.
func processResult(label, stdout, stderr string, err error) *framework.ToolResult {
	data := map[string]interface{}{"stdout": stdout, "stderr": stderr}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out := strings.TrimRight(stdout, "\n")
		if out == "" {
			out = "(no output)"
		}
		return framework.Succeeded(fmt.Sprintf("%s succeeded:\n%s", label, out), data)
	case errors.Is(err, framework.ErrCommandTimeout):
		res := framework.Failed("%s timed out: %v", label, err)
		res.Data = data
		res.Data["timeout"] = true
		return res
	case errors.As(err, &exitErr):
		data["exit_code"] = exitErr.ExitCode()
		detail := strings.TrimSpace(stderr)
		if detail == "" {
			detail = strings.TrimSpace(stdout)
		}
		res := framework.Failed("%s failed (exit %d):\n%s", label, exitErr.ExitCode(), detail)
		res.Data = data
		return res
	default:
		res := framework.Failed("%s could not start: %v", label, err)
		res.Data = data
		return res
	}
}

// RunPythonTool runs a Python script from the workspace.
type RunPythonTool struct {
	execBase
	Python string
}

func (t *RunPythonTool) Name() string { return "run_python" }
func (t *RunPythonTool) Description() string {
	return "Runs a Python script and returns its output."
}
func (t *RunPythonTool) Category() string { return "execution" }
func (t *RunPythonTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		pathParam,
		framework.Param("args", framework.KindList, false, "command-line arguments"),
		framework.Param("input", framework.KindString, false, "text written to stdin"),
	}
}
func (t *RunPythonTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("filepath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	if strings.ToLower(filepath.Ext(path)) != ".py" {
		return framework.Failed("%s is not a Python file", t.Workspace.Rel(path)), nil
	}
	args := append([]string{t.python(), path}, params.List("args")...)
	stdout, stderr, err := t.run(ctx, args, params.String("input"))
	return processResult("python "+t.Workspace.Rel(path), stdout, stderr, err), nil
}
func (t *RunPythonTool) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(t.python())
	return err == nil
}
func (t *RunPythonTool) python() string {
	if t.Python != "" {
		return t.Python
	}
	return "python3"
}

// RunCommandTool runs an arbitrary shell command in the workspace.
type RunCommandTool struct {
	execBase
	Shell []string
}

func (t *RunCommandTool) Name() string { return "run_command" }
func (t *RunCommandTool) Description() string {
	return "Runs a shell command in the workspace (requires approval)."
}
func (t *RunCommandTool) Category() string { return "execution" }
func (t *RunCommandTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("command", framework.KindString, true, "shell command line"),
	}
}
func (t *RunCommandTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	command := strings.TrimSpace(params.String("command"))
	if command == "" {
		return framework.Failed("command is empty"), nil
	}
	args := append(append([]string{}, t.shell()...), command)
	stdout, stderr, err := t.run(ctx, args, "")
	return processResult("command `"+command+"`", stdout, stderr, err), nil
}
func (t *RunCommandTool) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(t.shell()[0])
	return err == nil
}
func (t *RunCommandTool) shell() []string {
	if len(t.Shell) > 0 {
		return t.Shell
	}
	return []string{"sh", "-c"}
}

// RunTestsTool executes the project's test command.
type RunTestsTool struct {
	execBase
	Command []string
}

func (t *RunTestsTool) Name() string { return "run_tests" }
func (t *RunTestsTool) Description() string {
	return "Runs the project's tests, optionally for one target."
}
func (t *RunTestsTool) Category() string { return "execution" }
func (t *RunTestsTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("target", framework.KindString, false, "test file, directory or pattern"),
	}
}
func (t *RunTestsTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	cmdline := append([]string{}, t.command()...)
	if target := params.String("target"); target != "" {
		cmdline = append(cmdline, target)
	}
	stdout, stderr, err := t.run(ctx, cmdline, "")
	return processResult("tests", stdout, stderr, err), nil
}
func (t *RunTestsTool) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(t.command()[0])
	return err == nil
}
func (t *RunTestsTool) command() []string {
	if len(t.Command) > 0 {
		return t.Command
	}
	return []string{"python3", "-m", "pytest", "-q"}
}

// CheckSyntaxTool compiles a Python file without running it.
type CheckSyntaxTool struct {
	execBase
	Python string
}

func (t *CheckSyntaxTool) Name() string        { return "check_syntax" }
func (t *CheckSyntaxTool) Description() string { return "Checks a Python file for syntax errors." }
func (t *CheckSyntaxTool) Category() string    { return "execution" }
func (t *CheckSyntaxTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *CheckSyntaxTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("filepath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	rel := t.Workspace.Rel(path)
	python := t.Python
	if python == "" {
		python = "python3"
	}
	stdout, stderr, err := t.run(ctx, []string{python, "-m", "py_compile", path}, "")
	if err == nil {
		return framework.Succeeded(fmt.Sprintf("No syntax errors in %s", rel), map[string]interface{}{"path": rel, "valid": true}), nil
	}
	res := processResult("syntax check of "+rel, stdout, stderr, err)
	if res.Data != nil {
		res.Data["valid"] = false
	}
	return res, nil
}
func (t *CheckSyntaxTool) IsAvailable(ctx context.Context) bool { return true }

// ExecOptions configures the execution tools.
type ExecOptions struct {
	Python      string
	TestCommand []string
	Timeout     time.Duration
}

// ExecutionTools returns the process-backed tools.
func ExecutionTools(ws Workspace, runner framework.CommandRunner, opts ExecOptions) []framework.Tool {
	base := execBase{Workspace: ws, Runner: runner, Timeout: opts.Timeout}
	return []framework.Tool{
		&RunPythonTool{execBase: base, Python: opts.Python},
		&RunCommandTool{execBase: base},
		&RunTestsTool{execBase: base, Command: opts.TestCommand},
		&CheckSyntaxTool{execBase: base, Python: opts.Python},
	}
}
