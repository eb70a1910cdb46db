package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

// DefaultGitNetworkTimeout bounds push and pull.
const DefaultGitNetworkTimeout = 60 * time.Second

// GitCommandTool executes one predefined git subcommand.
type GitCommandTool struct {
	Workspace      Workspace
	Runner         framework.CommandRunner
	Command        string
	Timeout        time.Duration
	NetworkTimeout time.Duration
}

func (t *GitCommandTool) Name() string { return "git_" + t.Command }

func (t *GitCommandTool) Description() string {
	switch t.Command {
	case "status":
		return "Shows the working tree status."
	case "diff":
		return "Shows unstaged (or staged) changes."
	case "log":
		return "Shows recent commits."
	case "add":
		return "Stages files for commit."
	case "commit":
		return "Commits staged changes."
	case "push":
		return "Pushes commits to a remote (requires approval)."
	case "pull":
		return "Pulls changes from a remote."
	case "branch":
		return "Lists, creates, switches or deletes branches."
	default:
		return "Git command"
	}
}

func (t *GitCommandTool) Category() string { return "git" }

func (t *GitCommandTool) Parameters() []framework.ToolParameter {
	str := framework.StringValue
	switch t.Command {
	case "diff":
		return []framework.ToolParameter{
			framework.Param("filepath", framework.KindString, false, "limit the diff to one path"),
			framework.Param("staged", framework.KindBool, false, "show staged changes").WithDefault(framework.BoolValue(false)),
		}
	case "log":
		return []framework.ToolParameter{
			framework.Param("count", framework.KindInt, false, "number of commits").WithDefault(framework.IntValue(10)),
		}
	case "add":
		return []framework.ToolParameter{
			framework.Param("filepath", framework.KindString, false, "path to stage").WithDefault(str(".")),
		}
	case "commit":
		return []framework.ToolParameter{
			framework.Param("message", framework.KindString, true, "commit message"),
		}
	case "push", "pull":
		return []framework.ToolParameter{
			framework.Param("remote", framework.KindString, false, "remote name").WithDefault(str("origin")),
			framework.Param("branch", framework.KindString, false, "branch name; current branch when empty"),
		}
	case "branch":
		return []framework.ToolParameter{
			framework.Param("action", framework.KindString, false, "list, create, switch or delete").WithDefault(str("list")),
			framework.Param("branch_name", framework.KindString, false, "branch to act on"),
		}
	default:
		return []framework.ToolParameter{}
	}
}

func (t *GitCommandTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	args, err := t.args(params)
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	timeout := t.Timeout
	if t.Command == "push" || t.Command == "pull" {
		timeout = t.NetworkTimeout
		if timeout <= 0 {
			timeout = DefaultGitNetworkTimeout
		}
	}
	return t.runGit(ctx, args, timeout), nil
}

func (t *GitCommandTool) args(params framework.Params) ([]string, error) {
	switch t.Command {
	case "status":
		return []string{"status", "--short", "--branch"}, nil
	case "diff":
		args := []string{"diff"}
		if params.Bool("staged", false) {
			args = append(args, "--staged")
		}
		if path := params.String("filepath"); path != "" {
			args = append(args, "--", path)
		}
		return args, nil
	case "log":
		count := params.Int("count", 10)
		if count <= 0 {
			count = 10
		}
		return []string{"log", fmt.Sprintf("-n%d", count), "--oneline", "--decorate"}, nil
	case "add":
		path := params.String("filepath")
		if path == "" {
			path = "."
		}
		return []string{"add", "--", path}, nil
	case "commit":
		msg := strings.TrimSpace(params.String("message"))
		if msg == "" {
			return nil, fmt.Errorf("commit message required")
		}
		return []string{"commit", "-m", msg}, nil
	case "push", "pull":
		remote := params.String("remote")
		if remote == "" {
			remote = "origin"
		}
		args := []string{t.Command, remote}
		if branch := params.String("branch"); branch != "" {
			args = append(args, branch)
		}
		return args, nil
	case "branch":
		name := params.String("branch_name")
		switch action := strings.ToLower(params.String("action")); action {
		case "", "list":
			return []string{"branch", "--list"}, nil
		case "create", "switch", "delete":
			if name == "" {
				return nil, fmt.Errorf("branch_name required to %s a branch", action)
			}
			switch action {
			case "create":
				return []string{"checkout", "-b", name}, nil
			case "switch":
				return []string{"checkout", name}, nil
			default:
				return []string{"branch", "-d", name}, nil
			}
		default:
			return nil, fmt.Errorf("unknown branch action %q", action)
		}
	default:
		return nil, fmt.Errorf("unsupported git command %s", t.Command)
	}
}

func (t *GitCommandTool) runGit(ctx context.Context, args []string, timeout time.Duration) *framework.ToolResult {
	if t.Runner == nil {
		return framework.Failed("command runner missing")
	}
	stdout, stderr, err := t.Runner.Run(ctx, framework.CommandRequest{
		Workdir: t.Workspace.Root,
		Args:    append([]string{"git"}, args...),
		Timeout: timeout,
	})
	res := processResult("git "+args[0], stdout, stderr, err)
	if res.Data == nil {
		res.Data = map[string]interface{}{}
	}
	res.Data["output"] = stdout
	res.Data["time"] = time.Now().UTC()
	return res
}

func (t *GitCommandTool) IsAvailable(ctx context.Context) bool {
	if t.Runner == nil {
		return false
	}
	_, _, err := t.Runner.Run(ctx, framework.CommandRequest{
		Workdir: t.Workspace.Root,
		Args:    []string{"git", "rev-parse", "--is-inside-work-tree"},
		Timeout: 5 * time.Second,
	})
	return err == nil
}

// GitTools returns one tool per supported subcommand.
func GitTools(ws Workspace, runner framework.CommandRunner, timeout, networkTimeout time.Duration) []framework.Tool {
	var out []framework.Tool
	for _, cmd := range []string{"status", "diff", "log", "add", "commit", "push", "pull", "branch"} {
		out = append(out, &GitCommandTool{
			Workspace:      ws,
			Runner:         runner,
			Command:        cmd,
			Timeout:        timeout,
			NetworkTimeout: networkTimeout,
		})
	}
	return out
}
