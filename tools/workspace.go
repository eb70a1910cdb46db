// Package tools holds the concrete developer tools the agent can invoke:
// file management, code execution, git, static analysis and code templates.
package tools

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var errBinaryFile = errors.New("binary file detected")

// Workspace confines tool paths to one root directory.
type Workspace struct {
	Root string
}

// NewWorkspace resolves root to an absolute path.
func NewWorkspace(root string) (Workspace, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve workspace: %w", err)
	}
	return Workspace{Root: filepath.Clean(abs)}, nil
}

// Resolve maps a user-supplied path to an absolute path inside the root.
func (w Workspace) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path required")
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(w.Root, path)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the workspace", path)
	}
	return abs, nil
}

// Rel renders an absolute path relative to the root for messages.
func (w Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.Root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for _, b := range data {
		if b == 0 {
			return false
		}
	}
	return true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return nil
}
