package tools

import (
	"fmt"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

// Options configures the default tool set.
type Options struct {
	// TrashDir receives deleted files; empty deletes permanently.
	TrashDir          string
	BackupOnWrite     bool
	Exec              ExecOptions
	GitTimeout        time.Duration
	GitNetworkTimeout time.Duration
}

// DefaultTools builds every developer tool rooted at ws.
func DefaultTools(ws Workspace, runner framework.CommandRunner, opts Options) []framework.Tool {
	lock := &FileLock{}
	var res []framework.Tool
	res = append(res, FileOperations(ws, opts.TrashDir, lock)...)
	res = append(res, ExecutionTools(ws, runner, opts.Exec)...)
	res = append(res, GitTools(ws, runner, opts.GitTimeout, opts.GitNetworkTimeout)...)
	res = append(res, AnalysisTools(ws)...)
	res = append(res, CodegenTools(ws, lock)...)
	for _, tool := range res {
		if w, ok := tool.(*WriteFileTool); ok {
			w.Backup = opts.BackupOnWrite
		}
	}
	return res
}

// NewRegistry registers DefaultTools in a fresh registry.
func NewRegistry(ws Workspace, runner framework.CommandRunner, opts Options) (*framework.ToolRegistry, error) {
	registry := framework.NewToolRegistry()
	for _, tool := range DefaultTools(ws, runner, opts) {
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register %s: %w", tool.Name(), err)
		}
	}
	return registry, nil
}
