package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lexcodex/codebuddy/framework"
)

var (
	pathParam   = framework.Param("filepath", framework.KindString, true, "path of the file, relative to the workspace")
	folderParam = framework.Param("folderpath", framework.KindString, true, "path of the folder, relative to the workspace")
)

// ReadFileTool reads files from disk.
type ReadFileTool struct {
	Workspace Workspace
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Reads a UTF-8 file and returns its content." }
func (t *ReadFileTool) Category() string    { return "file" }
func (t *ReadFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *ReadFileTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("filepath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return framework.Failed("cannot read %s: %v", t.Workspace.Rel(path), err), nil
	}
	if !isText(data) {
		return framework.Failed("%s: %v", t.Workspace.Rel(path), errBinaryFile), nil
	}
	content := string(data)
	return framework.Succeeded(
		fmt.Sprintf("Content of %s:\n%s", t.Workspace.Rel(path), content),
		map[string]interface{}{
			"path":    t.Workspace.Rel(path),
			"content": content,
			"size":    len(data),
			"lines":   strings.Count(content, "\n") + 1,
		},
	), nil
}
func (t *ReadFileTool) IsAvailable(ctx context.Context) bool { return true }

// WriteFileTool writes content to disk, creating parent folders.
type WriteFileTool struct {
	Workspace Workspace
	Backup    bool
	lock      *FileLock
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Writes content to a file, creating it if needed."
}
func (t *WriteFileTool) Category() string { return "file" }
func (t *WriteFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		pathParam,
		framework.Param("content", framework.KindString, false, "full file content").WithDefault(framework.StringValue("")),
	}
}
func (t *WriteFileTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("filepath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	content := []byte(params.String("content"))
	rel := t.Workspace.Rel(path)
	created := true
	err = t.lock.Run(func() error {
		if info, err := os.Stat(path); err == nil {
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", rel)
			}
			created = false
			if t.Backup {
				if err := copyFile(path, path+".bak"); err != nil {
					return err
				}
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, content, 0o644)
	})
	if err != nil {
		return framework.Failed("cannot write %s: %v", rel, err), nil
	}
	verb := "Updated"
	if created {
		verb = "Created"
	}
	return framework.Succeeded(
		fmt.Sprintf("%s %s (%d bytes)", verb, rel, len(content)),
		map[string]interface{}{"path": rel, "created": created, "bytes": len(content)},
	), nil
}
func (t *WriteFileTool) IsAvailable(ctx context.Context) bool { return true }

// ListFilesTool lists a folder, optionally recursively.
type ListFilesTool struct {
	Workspace Workspace
}

func (t *ListFilesTool) Name() string { return "list_files" }
func (t *ListFilesTool) Description() string {
	return "Lists files and folders, optionally filtered by a glob."
}
func (t *ListFilesTool) Category() string { return "file" }
func (t *ListFilesTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("folderpath", framework.KindString, false, "folder to list").WithDefault(framework.StringValue(".")),
		framework.Param("pattern", framework.KindString, false, "glob applied to base names").WithDefault(framework.StringValue("*")),
		framework.Param("recursive", framework.KindBool, false, "descend into subfolders").WithDefault(framework.BoolValue(false)),
	}
}
func (t *ListFilesTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	dir, err := t.Workspace.Resolve(folderOrRoot(params))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	pattern := params.String("pattern")
	if pattern == "" {
		pattern = "*"
	}
	recursive := params.Bool("recursive", false)
	var entries []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() && skipDir(d.Name()) {
			return fs.SkipDir
		}
		if match, _ := filepath.Match(pattern, d.Name()); match {
			name := t.Workspace.Rel(path)
			if d.IsDir() {
				name += "/"
			}
			entries = append(entries, name)
		}
		if d.IsDir() && !recursive {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return framework.Failed("cannot list %s: %v", t.Workspace.Rel(dir), err), nil
	}
	sort.Strings(entries)
	msg := fmt.Sprintf("%s is empty", t.Workspace.Rel(dir))
	if len(entries) > 0 {
		msg = fmt.Sprintf("Files in %s:\n%s", t.Workspace.Rel(dir), strings.Join(entries, "\n"))
	}
	return framework.Succeeded(msg, map[string]interface{}{"files": entries}), nil
}
func (t *ListFilesTool) IsAvailable(ctx context.Context) bool { return true }

func folderOrRoot(params framework.Params) string {
	if folder := params.String("folderpath"); folder != "" {
		return folder
	}
	return "."
}

func skipDir(name string) bool {
	switch name {
	case ".git", ".codebuddy", "__pycache__", "node_modules", ".venv":
		return true
	}
	return false
}

// CreateFolderTool creates a folder and its parents.
type CreateFolderTool struct {
	Workspace Workspace
}

func (t *CreateFolderTool) Name() string { return "create_folder" }
func (t *CreateFolderTool) Description() string {
	return "Creates a folder, including missing parents."
}
func (t *CreateFolderTool) Category() string { return "file" }
func (t *CreateFolderTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{folderParam}
}
func (t *CreateFolderTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("folderpath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	rel := t.Workspace.Rel(path)
	if info, err := os.Stat(path); err == nil {
		if !info.IsDir() {
			return framework.Failed("%s exists and is not a folder", rel), nil
		}
		return framework.Succeeded(fmt.Sprintf("Folder %s already exists", rel), map[string]interface{}{"path": rel, "created": false}), nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return framework.Failed("cannot create %s: %v", rel, err), nil
	}
	return framework.Succeeded(fmt.Sprintf("Created folder %s", rel), map[string]interface{}{"path": rel, "created": true}), nil
}
func (t *CreateFolderTool) IsAvailable(ctx context.Context) bool { return true }

// DeleteFileTool removes a file. With a TrashDir the file is moved there
// instead of being deleted permanently.
type DeleteFileTool struct {
	Workspace Workspace
	TrashDir  string
	lock      *FileLock
}

func (t *DeleteFileTool) Name() string        { return "delete_file" }
func (t *DeleteFileTool) Description() string { return "Deletes a file (requires approval)." }
func (t *DeleteFileTool) Category() string    { return "file" }
func (t *DeleteFileTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *DeleteFileTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("filepath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	rel := t.Workspace.Rel(path)
	info, err := os.Stat(path)
	if err != nil {
		return framework.Failed("file not found: %s", rel), nil
	}
	if info.IsDir() {
		return framework.Failed("%s is a folder; use delete_folder", rel), nil
	}
	var dest string
	err = t.lock.Run(func() error {
		if t.TrashDir == "" {
			return os.Remove(path)
		}
		if err := os.MkdirAll(t.TrashDir, 0o755); err != nil {
			return err
		}
		dest = filepath.Join(t.TrashDir, fmt.Sprintf("%s.%d", info.Name(), time.Now().UnixNano()))
		return os.Rename(path, dest)
	})
	if err != nil {
		return framework.Failed("cannot delete %s: %v", rel, err), nil
	}
	data := map[string]interface{}{"path": rel}
	if dest != "" {
		data["trash"] = dest
	}
	return framework.Succeeded(fmt.Sprintf("Deleted %s", rel), data), nil
}
func (t *DeleteFileTool) IsAvailable(ctx context.Context) bool { return true }

// DeleteFolderTool removes a folder and everything below it.
type DeleteFolderTool struct {
	Workspace Workspace
	lock      *FileLock
}

func (t *DeleteFolderTool) Name() string { return "delete_folder" }
func (t *DeleteFolderTool) Description() string {
	return "Deletes a folder and its contents (requires approval)."
}
func (t *DeleteFolderTool) Category() string { return "file" }
func (t *DeleteFolderTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{folderParam}
}
func (t *DeleteFolderTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	path, err := t.Workspace.Resolve(params.String("folderpath"))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	rel := t.Workspace.Rel(path)
	if path == t.Workspace.Root {
		return framework.Failed("refusing to delete the workspace root"), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return framework.Failed("folder not found: %s", rel), nil
	}
	if !info.IsDir() {
		return framework.Failed("%s is a file; use delete_file", rel), nil
	}
	if err := t.lock.Run(func() error { return os.RemoveAll(path) }); err != nil {
		return framework.Failed("cannot delete %s: %v", rel, err), nil
	}
	return framework.Succeeded(fmt.Sprintf("Deleted folder %s", rel), map[string]interface{}{"path": rel}), nil
}
func (t *DeleteFolderTool) IsAvailable(ctx context.Context) bool { return true }

// FileOperations returns the file tools rooted at the workspace. Writers
// share lock; a nil lock disables serialisation.
func FileOperations(ws Workspace, trashDir string, lock *FileLock) []framework.Tool {
	return []framework.Tool{
		&ReadFileTool{Workspace: ws},
		&WriteFileTool{Workspace: ws, lock: lock},
		&ListFilesTool{Workspace: ws},
		&CreateFolderTool{Workspace: ws},
		&DeleteFileTool{Workspace: ws, TrashDir: trashDir, lock: lock},
		&DeleteFolderTool{Workspace: ws, lock: lock},
	}
}

// FileLock protects operations that cannot race (write/delete).
type FileLock struct {
	mu sync.Mutex
}

// Run executes fn under the lock. A nil lock runs fn directly.
func (l *FileLock) Run(fn func() error) error {
	if l == nil {
		return fn()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
