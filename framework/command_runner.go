package framework

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrCommandTimeout is returned when a command exceeds its wall-clock limit.
var ErrCommandTimeout = errors.New("command timed out")

// commandWaitDelay bounds how long Run waits for inherited pipes to close
// once the command has been killed.
const commandWaitDelay = 500 * time.Millisecond

// CommandRequest captures process execution metadata.
type CommandRequest struct {
	Workdir string
	Args    []string
	Env     []string
	Input   string
	Timeout time.Duration
}

// CommandRunner describes a primitive capable of executing commands.
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (stdout string, stderr string, err error)
}

// LocalCommandRunner executes commands on the host, confined to a workspace
// directory.
type LocalCommandRunner struct {
	Workspace string
	// DefaultTimeout applies when a request carries none.
	DefaultTimeout time.Duration
}

// NewLocalCommandRunner builds a runner rooted at workspace.
func NewLocalCommandRunner(workspace string, timeout time.Duration) (*LocalCommandRunner, error) {
	if workspace == "" {
		return nil, errors.New("workspace required")
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	return &LocalCommandRunner{Workspace: filepath.Clean(abs), DefaultTimeout: timeout}, nil
}

// Run executes the command. A deadline overrun yields ErrCommandTimeout with
// whatever output was captured so far, never a half-finished state.
func (r *LocalCommandRunner) Run(ctx context.Context, req CommandRequest) (string, string, error) {
	if r == nil {
		return "", "", errors.New("command runner missing")
	}
	if len(req.Args) == 0 {
		return "", "", errors.New("command arguments required")
	}
	workdir, err := r.workdir(req.Workdir)
	if err != nil {
		return "", "", err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	execCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()
	cmd := exec.CommandContext(execCtx, req.Args[0], req.Args[1:]...)
	cmd.Dir = workdir
	killProcessGroup(cmd)
	cmd.WaitDelay = commandWaitDelay
	if len(req.Env) > 0 {
		cmd.Env = append(cmd.Environ(), req.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if req.Input != "" {
		cmd.Stdin = strings.NewReader(req.Input)
	}
	err = cmd.Run()
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return stdout.String(), stderr.String(), fmt.Errorf("%w after %s: %s", ErrCommandTimeout, timeout, strings.Join(req.Args, " "))
	}
	return stdout.String(), stderr.String(), err
}

// workdir resolves a request workdir inside the workspace.
func (r *LocalCommandRunner) workdir(dir string) (string, error) {
	if dir == "" {
		return r.Workspace, nil
	}
	abs := dir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.Workspace, dir)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(r.Workspace, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("workdir %s outside workspace %s", abs, r.Workspace)
	}
	return abs, nil
}
