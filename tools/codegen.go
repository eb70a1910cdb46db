package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/lexcodex/codebuddy/framework"
)

var codeTemplates = map[string]string{
	"python_script": `#!/usr/bin/env python3
"""{{.Name}}: command-line script."""

import argparse
import sys


def main(argv=None):
    parser = argparse.ArgumentParser(description="{{.Name}}")
    parser.add_argument("inputs", nargs="*", help="input values")
    args = parser.parse_args(argv)
    for item in args.inputs:
        print(item)
    return 0


if __name__ == "__main__":
    sys.exit(main())
`,
	"python_class": `"""{{.Name}} module."""


class {{.Class}}:
    """{{.Class}} description."""

    def __init__(self, name: str):
        self.name = name

    def __repr__(self) -> str:
        return f"{{.Class}}(name={self.name!r})"
`,
	"test_file": `"""Tests for {{.Name}}."""

import unittest


class Test{{.Class}}(unittest.TestCase):
    def setUp(self):
        pass

    def test_example(self):
        self.assertTrue(True)


if __name__ == "__main__":
    unittest.main()
`,
	"cli_app": `#!/usr/bin/env python3
"""{{.Name}} command-line application."""

import argparse
import logging

log = logging.getLogger("{{.Name}}")


def build_parser():
    parser = argparse.ArgumentParser(prog="{{.Name}}")
    parser.add_argument("-v", "--verbose", action="store_true")
    sub = parser.add_subparsers(dest="command", required=True)
    sub.add_parser("run", help="run the application")
    return parser


def main():
    args = build_parser().parse_args()
    logging.basicConfig(level=logging.DEBUG if args.verbose else logging.INFO)
    if args.command == "run":
        log.info("running")


if __name__ == "__main__":
    main()
`,
	"flask_app": `"""{{.Name}} web application."""

from flask import Flask, jsonify

app = Flask(__name__)


@app.route("/health")
def health():
    return jsonify(status="ok")


if __name__ == "__main__":
    app.run(debug=True)
`,
	"data_module": `"""{{.Name}} data model."""

from dataclasses import dataclass, field
from typing import List


@dataclass
class {{.Class}}:
    id: int
    name: str
    tags: List[str] = field(default_factory=list)
`,
}

var codeSnippets = map[string]string{
	"singleton": `class {{.Class}}:
    _instance = None

    def __new__(cls, *args, **kwargs):
        if cls._instance is None:
            cls._instance = super().__new__(cls)
        return cls._instance
`,
	"factory": `class {{.Class}}Factory:
    _registry = {}

    @classmethod
    def register(cls, name):
        def wrap(klass):
            cls._registry[name] = klass
            return klass
        return wrap

    @classmethod
    def create(cls, name, *args, **kwargs):
        if name not in cls._registry:
            raise ValueError(f"unknown type: {name}")
        return cls._registry[name](*args, **kwargs)
`,
	"decorator": `import functools


def {{.Func}}(func):
    @functools.wraps(func)
    def wrapper(*args, **kwargs):
        return func(*args, **kwargs)
    return wrapper
`,
	"context_manager": `from contextlib import contextmanager


@contextmanager
def {{.Func}}():
    resource = None
    try:
        yield resource
    finally:
        pass
`,
	"dataclass": `from dataclasses import dataclass


@dataclass
class {{.Class}}:
    name: str
    value: int = 0
`,
	"enum": `from enum import Enum


class {{.Class}}(Enum):
    FIRST = "first"
    SECOND = "second"
`,
	"retry_decorator": `import functools
import time


def retry(attempts=3, delay=1.0, exceptions=(Exception,)):
    def decorate(func):
        @functools.wraps(func)
        def wrapper(*args, **kwargs):
            for attempt in range(1, attempts + 1):
                try:
                    return func(*args, **kwargs)
                except exceptions:
                    if attempt == attempts:
                        raise
                    time.sleep(delay * attempt)
        return wrapper
    return decorate
`,
	"timer_decorator": `import functools
import time


def timed(func):
    @functools.wraps(func)
    def wrapper(*args, **kwargs):
        start = time.perf_counter()
        try:
            return func(*args, **kwargs)
        finally:
            print(f"{func.__name__} took {time.perf_counter() - start:.3f}s")
    return wrapper
`,
	"logger": `import logging


def get_logger(name="{{.Name}}", level=logging.INFO):
    logger = logging.getLogger(name)
    if not logger.handlers:
        handler = logging.StreamHandler()
        handler.setFormatter(logging.Formatter("%(asctime)s %(levelname)s %(name)s: %(message)s"))
        logger.addHandler(handler)
    logger.setLevel(level)
    return logger
`,
	"file_reader": `def read_lines(path, encoding="utf-8"):
    with open(path, encoding=encoding) as fh:
        return [line.rstrip("\n") for line in fh]
`,
	"json_handler": `import json


def load_json(path):
    with open(path, encoding="utf-8") as fh:
        return json.load(fh)


def save_json(path, data):
    with open(path, "w", encoding="utf-8") as fh:
        json.dump(data, fh, indent=2)
`,
	"binary_search": `def binary_search(items, target):
    lo, hi = 0, len(items) - 1
    while lo <= hi:
        mid = (lo + hi) // 2
        if items[mid] == target:
            return mid
        if items[mid] < target:
            lo = mid + 1
        else:
            hi = mid - 1
    return -1
`,
	"stack": `class Stack:
    def __init__(self):
        self._items = []

    def push(self, item):
        self._items.append(item)

    def pop(self):
        if not self._items:
            raise IndexError("pop from empty stack")
        return self._items.pop()

    def __len__(self):
        return len(self._items)
`,
	"queue": `from collections import deque


class Queue:
    def __init__(self):
        self._items = deque()

    def enqueue(self, item):
        self._items.append(item)

    def dequeue(self):
        if not self._items:
            raise IndexError("dequeue from empty queue")
        return self._items.popleft()

    def __len__(self):
        return len(self._items)
`,
}

// templateVars are the names available inside code templates.
type templateVars struct {
	Name  string
	Class string
	Func  string
}

func newTemplateVars(name string) templateVars {
	if name == "" {
		name = "example"
	}
	var class strings.Builder
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' }) {
		class.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	fn := strings.ToLower(strings.NewReplacer("-", "_", " ", "_", ".", "_").Replace(name))
	return templateVars{Name: name, Class: class.String(), Func: fn}
}

func render(kind, key, body string, vars templateVars) (string, error) {
	tmpl, err := template.New(kind + "/" + key).Parse(body)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CodeTemplateTool renders a starter file and optionally writes it.
type CodeTemplateTool struct {
	Workspace Workspace
	lock      *FileLock
}

func (t *CodeTemplateTool) Name() string { return "code_template" }
func (t *CodeTemplateTool) Description() string {
	return "Generates a starter file from a named template (" + strings.Join(sortedKeys(codeTemplates), ", ") + ")."
}
func (t *CodeTemplateTool) Category() string { return "codegen" }
func (t *CodeTemplateTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("template_name", framework.KindString, true, "template to render"),
		framework.Param("filepath", framework.KindString, false, "new file to write the result to"),
		framework.Param("name", framework.KindString, false, "name substituted into the template"),
	}
}
func (t *CodeTemplateTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	key := strings.ToLower(params.String("template_name"))
	body, ok := codeTemplates[key]
	if !ok {
		return framework.Failed("unknown template %q; available: %s", key, strings.Join(sortedKeys(codeTemplates), ", ")), nil
	}
	target := params.String("filepath")
	name := params.String("name")
	if name == "" && target != "" {
		name = strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	}
	code, err := render("template", key, body, newTemplateVars(name))
	if err != nil {
		return framework.Failed("render %s: %v", key, err), nil
	}
	data := map[string]interface{}{"template": key, "code": code}
	if target == "" {
		return framework.Succeeded(fmt.Sprintf("Generated %s template:\n%s", key, code), data), nil
	}
	path, err := t.Workspace.Resolve(target)
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	rel := t.Workspace.Rel(path)
	err = t.lock.Run(func() error {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", rel)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(code), 0o644)
	})
	if err != nil {
		return framework.Failed("cannot write template: %v", err), nil
	}
	data["path"] = rel
	return framework.Succeeded(fmt.Sprintf("Created %s from the %s template", rel, key), data), nil
}
func (t *CodeTemplateTool) IsAvailable(ctx context.Context) bool { return true }

// CodeSnippetTool returns a common pattern without touching the workspace.
type CodeSnippetTool struct{}

func (t *CodeSnippetTool) Name() string { return "code_snippet" }
func (t *CodeSnippetTool) Description() string {
	return "Returns a code snippet for a common pattern (" + strings.Join(sortedKeys(codeSnippets), ", ") + ")."
}
func (t *CodeSnippetTool) Category() string { return "codegen" }
func (t *CodeSnippetTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("snippet_type", framework.KindString, true, "pattern to generate"),
		framework.Param("name", framework.KindString, false, "class or function name"),
	}
}
func (t *CodeSnippetTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	key := strings.ToLower(params.String("snippet_type"))
	body, ok := codeSnippets[key]
	if !ok {
		return framework.Failed("snippet %q not found; available: %s", key, strings.Join(sortedKeys(codeSnippets), ", ")), nil
	}
	name := params.String("name")
	if name == "" {
		name = key
	}
	code, err := render("snippet", key, body, newTemplateVars(name))
	if err != nil {
		return framework.Failed("render %s: %v", key, err), nil
	}
	return framework.Succeeded(fmt.Sprintf("Generated %s snippet:\n```python\n%s```", key, code),
		map[string]interface{}{"snippet": key, "code": code}), nil
}
func (t *CodeSnippetTool) IsAvailable(ctx context.Context) bool { return true }

// CodegenTools returns the template and refactoring tools.
func CodegenTools(ws Workspace, lock *FileLock) []framework.Tool {
	return []framework.Tool{
		&CodeTemplateTool{Workspace: ws, lock: lock},
		&CodeSnippetTool{},
		&RefactorTool{Workspace: ws, lock: lock},
	}
}
