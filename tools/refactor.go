package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

// refactorKinds run in this order when refactor_type is auto.
var refactorKinds = []string{"optimize_imports", "improve_naming", "add_docstrings"}

// clearerNames maps abbreviated function names to the names they are
// renamed to, together with their call sites.
var clearerNames = map[string]string{
	"calc": "calculate",
	"proc": "process",
	"init": "initialize",
}

type refactorFunc func(lines []string) ([]string, []string)

var refactorFuncs = map[string]refactorFunc{
	"optimize_imports": optimizeImports,
	"improve_naming":   improveNaming,
	"add_docstrings":   addDocstrings,
}

// refactorPython applies one refactoring, or all of them for auto, and
// returns the new lines with a note per change.
func refactorPython(lines []string, kind string) ([]string, []string) {
	kinds := []string{kind}
	if kind == "auto" {
		kinds = refactorKinds
	}
	var changes []string
	for _, k := range kinds {
		var notes []string
		lines, notes = refactorFuncs[k](lines)
		changes = append(changes, notes...)
	}
	return lines, changes
}

func isImport(trimmed string) bool {
	return strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ")
}

// importBlock finds the first run of import statements, skipping a leading
// shebang, module docstring and comments. end is exclusive and includes
// trailing blank lines.
func importBlock(lines []string) (start, end int, ok bool) {
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "", strings.HasPrefix(trimmed, "#"):
			i++
			continue
		case strings.HasPrefix(trimmed, `"""`), strings.HasPrefix(trimmed, "'''"):
			quote := trimmed[:3]
			if len(trimmed) >= 6 && strings.HasSuffix(trimmed, quote) {
				i++
				continue
			}
			i++
			for i < len(lines) && !strings.Contains(lines[i], quote) {
				i++
			}
			i++
			continue
		}
		break
	}
	if i >= len(lines) || !isImport(strings.TrimSpace(lines[i])) {
		return 0, 0, false
	}
	start = i
	for end = i; end < len(lines); end++ {
		trimmed := strings.TrimSpace(lines[end])
		if trimmed != "" && !isImport(trimmed) {
			break
		}
		if strings.HasSuffix(trimmed, "(") || strings.HasSuffix(trimmed, "\\") {
			return 0, 0, false
		}
	}
	return start, end, true
}

// optimizeImports drops unused imports from the leading import block and
// groups the rest as future, standard library, third party and local, each
// group sorted.
func optimizeImports(lines []string) ([]string, []string) {
	start, end, ok := importBlock(lines)
	if !ok {
		return lines, nil
	}
	used := map[string]bool{}
	for _, line := range lines[end:] {
		for _, word := range identifier.FindAllString(stripComment(line), -1) {
			used[word] = true
		}
	}

	groups := make([][]string, 4)
	seen := map[string]bool{}
	removed := 0
	var original []string
	for _, line := range lines[start:end] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		original = append(original, trimmed)
		kept, module := keepUsedImports(trimmed, used)
		if kept == "" {
			removed++
			continue
		}
		if seen[kept] {
			removed++
			continue
		}
		seen[kept] = true
		groups[importGroup(module)] = append(groups[importGroup(module)], kept)
	}

	var block []string
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		sort.Strings(g)
		if len(block) > 0 {
			block = append(block, "")
		}
		block = append(block, g...)
	}
	if removed == 0 && strings.Join(block, "\n") == strings.Join(original, "\n") {
		return lines, nil
	}

	rest := lines[end:]
	if len(block) > 0 && len(rest) > 0 {
		block = append(block, "")
		if next := strings.TrimSpace(rest[0]); strings.HasPrefix(next, "def ") || strings.HasPrefix(next, "class ") || strings.HasPrefix(next, "@") {
			block = append(block, "")
		}
	}
	out := append(append(append([]string{}, lines[:start]...), block...), rest...)

	var changes []string
	if removed > 0 {
		changes = append(changes, fmt.Sprintf("removed %d unused or duplicate import(s)", removed))
	}
	if len(block) > 0 {
		changes = append(changes, "grouped and sorted imports")
	}
	return out, changes
}

// keepUsedImports rewrites one import statement to the names still in use.
// It returns "" when nothing is used.
func keepUsedImports(stmt string, used map[string]bool) (string, string) {
	if m := importLine.FindStringSubmatch(stmt); m != nil {
		name := m[2]
		if name == "" {
			name = strings.Split(m[1], ".")[0]
		}
		if !used[name] {
			return "", m[1]
		}
		return stmt, m[1]
	}
	m := fromImportLine.FindStringSubmatch(stmt)
	if m == nil || strings.Contains(m[2], "*") || m[1] == "__future__" {
		module := strings.Fields(strings.TrimPrefix(strings.TrimPrefix(stmt, "from "), "import "))
		if len(module) == 0 {
			return stmt, ""
		}
		return stmt, strings.TrimSuffix(module[0], ",")
	}
	var names []string
	for _, part := range strings.Split(strings.Trim(m[2], "() "), ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		if used[fields[len(fields)-1]] {
			names = append(names, strings.Join(fields, " "))
		}
	}
	if len(names) == 0 {
		return "", m[1]
	}
	return fmt.Sprintf("from %s import %s", m[1], strings.Join(names, ", ")), m[1]
}

func importGroup(module string) int {
	top := strings.Split(module, ".")[0]
	switch {
	case module == "__future__":
		return 0
	case strings.HasPrefix(module, "."):
		return 3
	case pythonStdlib[top]:
		return 1
	default:
		return 2
	}
}

// improveNaming renames abbreviated functions and their call sites, unless
// the clearer name is already taken.
func improveNaming(lines []string) ([]string, []string) {
	olds := make([]string, 0, len(clearerNames))
	for old := range clearerNames {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	text := strings.Join(lines, "\n")
	var changes []string
	for _, old := range olds {
		name := clearerNames[old]
		defined := regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+` + old + `\s*\(`)
		taken := regexp.MustCompile(`\b` + name + `\b`)
		if !defined.MatchString(text) || taken.MatchString(text) {
			continue
		}
		text = regexp.MustCompile(`\b`+old+`(\s*\()`).ReplaceAllString(text, name+"$1")
		changes = append(changes, fmt.Sprintf("renamed %s() to %s()", old, name))
	}
	if len(changes) == 0 {
		return lines, nil
	}
	return strings.Split(text, "\n"), changes
}

// addDocstrings inserts a one-line docstring into every function and class
// whose header fits on one line and whose body has none. Dunder methods are
// left alone.
func addDocstrings(lines []string) ([]string, []string) {
	var out []string
	added := 0
	for i, line := range lines {
		out = append(out, line)
		header := strings.TrimSpace(stripComment(line))
		if !strings.HasSuffix(header, ":") {
			continue
		}
		var doc string
		var indent string
		if m := defLine.FindStringSubmatch(line); m != nil && !strings.HasPrefix(m[2], "__") {
			doc, indent = humanize(m[2])+".", m[1]
		} else if m := classLine.FindStringSubmatch(line); m != nil {
			doc, indent = m[2]+" class.", m[1]
		} else {
			continue
		}
		next := i + 1
		for next < len(lines) && strings.TrimSpace(lines[next]) == "" {
			next++
		}
		bodyIndent := indent + "    "
		if next < len(lines) {
			if ws := leadingWhitespace(lines[next]); len(ws) > len(indent) {
				bodyIndent = ws
			}
			trimmed := strings.TrimSpace(lines[next])
			if strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''") ||
				strings.HasPrefix(trimmed, `r"""`) {
				continue
			}
		}
		out = append(out, bodyIndent+`"""`+doc+`"""`)
		added++
	}
	if added == 0 {
		return lines, nil
	}
	return out, []string{fmt.Sprintf("added %d docstring(s)", added)}
}

// humanize turns calculate_total into "Calculate total".
func humanize(name string) string {
	words := strings.Fields(strings.ReplaceAll(strings.Trim(name, "_"), "_", " "))
	if len(words) == 0 {
		return name
	}
	s := strings.ToLower(strings.Join(words, " "))
	return strings.ToUpper(s[:1]) + s[1:]
}

// RefactorTool rewrites a Python file in place, keeping a .bak copy.
type RefactorTool struct {
	Workspace Workspace
	lock      *FileLock
}

func (t *RefactorTool) Name() string { return "refactor_code" }
func (t *RefactorTool) Description() string {
	return "Refactors a Python file (" + strings.Join(append([]string{"auto"}, refactorKinds...), ", ") + ")."
}
func (t *RefactorTool) Category() string { return "codegen" }
func (t *RefactorTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		pathParam,
		framework.Param("refactor_type", framework.KindString, false, "refactoring to apply").WithDefault(framework.StringValue("auto")),
		framework.Param("dry_run", framework.KindBool, false, "show the result without writing it").WithDefault(framework.BoolValue(false)),
	}
}
func (t *RefactorTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	kind := strings.ToLower(params.String("refactor_type"))
	if kind == "" {
		kind = "auto"
	}
	if _, ok := refactorFuncs[kind]; !ok && kind != "auto" {
		return framework.Failed("unknown refactor type %q; available: auto, %s", kind, strings.Join(refactorKinds, ", ")), nil
	}
	if filepath.Ext(params.String("filepath")) != ".py" {
		return framework.Failed("only Python files can be refactored: %s", params.String("filepath")), nil
	}
	src, failed := loadSource(t.Workspace, params.String("filepath"))
	if failed != nil {
		return failed, nil
	}
	lines, changes := refactorPython(src.lines, kind)
	data := map[string]interface{}{"path": src.rel, "refactor_type": kind, "changes": changes}
	if len(changes) == 0 {
		return framework.Succeeded(fmt.Sprintf("No refactoring needed for %s (%s)", src.rel, kind), data), nil
	}
	code := strings.Join(lines, "\n")
	data["code"] = code
	summary := "  - " + strings.Join(changes, "\n  - ")
	if params.Bool("dry_run", false) {
		return framework.Succeeded(fmt.Sprintf("Refactoring preview for %s (%s):\n%s\n\n%s", src.rel, kind, summary, code), data), nil
	}

	path, err := t.Workspace.Resolve(src.rel)
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	backup := path + ".bak"
	err = t.lock.Run(func() error {
		if err := copyFile(path, backup); err != nil {
			return err
		}
		return os.WriteFile(path, []byte(code), 0o644)
	})
	if err != nil {
		return framework.Failed("cannot refactor %s: %v", src.rel, err), nil
	}
	data["backup"] = t.Workspace.Rel(backup)
	return framework.Succeeded(fmt.Sprintf("Refactored %s (%s):\n%s\nBackup: %s", src.rel, kind, summary, t.Workspace.Rel(backup)), data), nil
}
func (t *RefactorTool) IsAvailable(ctx context.Context) bool { return true }
