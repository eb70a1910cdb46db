package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/lexcodex/codebuddy/framework"
)

// MaxLineLength is the lint threshold for long lines.
const MaxLineLength = 100

// sourceFile is a Python file split into lines.
type sourceFile struct {
	rel   string
	lines []string
}

func loadSource(ws Workspace, raw string) (*sourceFile, *framework.ToolResult) {
	path, err := ws.Resolve(raw)
	if err != nil {
		return nil, framework.Failed("%v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, framework.Failed("cannot read %s: %v", ws.Rel(path), err)
	}
	if !isText(data) {
		return nil, framework.Failed("%s: %v", ws.Rel(path), errBinaryFile)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	return &sourceFile{rel: ws.Rel(path), lines: strings.Split(text, "\n")}, nil
}

// Diagnose lints and security-scans in-memory Python source, for editors
// that hold unsaved buffers.
func Diagnose(name, text string) []protocol.Diagnostic {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	src := &sourceFile{rel: name, lines: strings.Split(text, "\n")}
	diags := append(lintPython(src), scanSecurity(src)...)
	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].Range.Start.Line < diags[j].Range.Start.Line
	})
	return diags
}

func diagnostic(line, startCol, endCol int, sev protocol.DiagnosticSeverity, code, source, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: uint32(startCol)},
			End:   protocol.Position{Line: uint32(line), Character: uint32(endCol)},
		},
		Severity: sev,
		Code:     code,
		Source:   source,
		Message:  msg,
	}
}

func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	default:
		return "hint"
	}
}

// renderDiagnostics formats diagnostics one per line, 1-based like editors.
func renderDiagnostics(rel string, diags []protocol.Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&b, "%s:%d:%d: %s [%v] %s\n", rel, d.Range.Start.Line+1, d.Range.Start.Character+1,
			severityName(d.Severity), d.Code, d.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	importLine     = regexp.MustCompile(`^\s*import\s+([\w.]+)(?:\s+as\s+(\w+))?\s*$`)
	fromImportLine = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+(.+)$`)
	bareExcept     = regexp.MustCompile(`^\s*except\s*:`)
	defLine        = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	classLine      = regexp.MustCompile(`^(\s*)class\s+(\w+)`)
	decisionWords  = regexp.MustCompile(`\b(?:if|elif|for|while|and|or|except|case)\b`)
	identifier     = regexp.MustCompile(`\b\w+\b`)
)

// lintPython runs the built-in style and correctness checks.
func lintPython(src *sourceFile) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	imported := map[string]int{}
	for i, line := range src.lines {
		if n := len(line); n > MaxLineLength {
			diags = append(diags, diagnostic(i, MaxLineLength, n, protocol.DiagnosticSeverityWarning, "E501", "codebuddy-lint",
				fmt.Sprintf("line too long (%d > %d characters)", n, MaxLineLength)))
		}
		if trimmed := strings.TrimRight(line, " \t"); len(trimmed) != len(line) {
			diags = append(diags, diagnostic(i, len(trimmed), len(line), protocol.DiagnosticSeverityInformation, "W291", "codebuddy-lint",
				"trailing whitespace"))
		}
		if indent := leadingWhitespace(line); strings.Contains(indent, "\t") {
			diags = append(diags, diagnostic(i, 0, len(indent), protocol.DiagnosticSeverityWarning, "W191", "codebuddy-lint",
				"indentation contains tabs"))
		}
		if bareExcept.MatchString(line) {
			diags = append(diags, diagnostic(i, 0, len(line), protocol.DiagnosticSeverityWarning, "E722", "codebuddy-lint",
				"do not use bare 'except'"))
		}
		if m := importLine.FindStringSubmatch(line); m != nil {
			name := m[2]
			if name == "" {
				name = strings.Split(m[1], ".")[0]
			}
			imported[name] = i
		} else if m := fromImportLine.FindStringSubmatch(line); m != nil && !strings.Contains(m[2], "*") {
			for _, part := range strings.Split(strings.Trim(m[2], "() "), ",") {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}
				imported[fields[len(fields)-1]] = i
			}
		}
	}
	used := map[string]bool{}
	for _, line := range src.lines {
		if importLine.MatchString(line) || fromImportLine.MatchString(line) {
			continue
		}
		for _, word := range identifier.FindAllString(stripComment(line), -1) {
			if _, ok := imported[word]; ok {
				used[word] = true
			}
		}
	}
	names := make([]string, 0, len(imported))
	for name := range imported {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !used[name] {
			line := imported[name]
			diags = append(diags, diagnostic(line, 0, len(src.lines[line]), protocol.DiagnosticSeverityWarning, "F401", "codebuddy-lint",
				fmt.Sprintf("'%s' imported but unused", name)))
		}
	}
	if n := len(src.lines); n > 1 && src.lines[n-1] != "" {
		diags = append(diags, diagnostic(n-1, len(src.lines[n-1]), len(src.lines[n-1]), protocol.DiagnosticSeverityInformation, "W292", "codebuddy-lint",
			"no newline at end of file"))
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Range.Start.Line < diags[j].Range.Start.Line })
	return diags
}

func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// stripComment drops a trailing # comment outside string literals.
func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return line[:i]
		}
	}
	return line
}

// PythonLintTool reports style and correctness issues as LSP diagnostics.
type PythonLintTool struct {
	Workspace Workspace
}

func (t *PythonLintTool) Name() string { return "python_lint" }
func (t *PythonLintTool) Description() string {
	return "Lints a Python file for style and common mistakes."
}
func (t *PythonLintTool) Category() string { return "analysis" }
func (t *PythonLintTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *PythonLintTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	src, failed := loadSource(t.Workspace, params.String("filepath"))
	if failed != nil {
		return failed, nil
	}
	diags := lintPython(src)
	msg := fmt.Sprintf("No lint issues in %s", src.rel)
	if len(diags) > 0 {
		msg = fmt.Sprintf("%d lint issue(s) in %s:\n%s", len(diags), src.rel, renderDiagnostics(src.rel, diags))
	}
	return framework.Succeeded(msg, map[string]interface{}{"path": src.rel, "diagnostics": diags}), nil
}
func (t *PythonLintTool) IsAvailable(ctx context.Context) bool { return true }

type securityRule struct {
	code     string
	pattern  *regexp.Regexp
	unless   string // a line containing this is exempt
	severity protocol.DiagnosticSeverity
	message  string
}

var securityRules = []securityRule{
	{"S102", regexp.MustCompile(`\bexec\s*\(`), "", protocol.DiagnosticSeverityError, "use of exec() allows arbitrary code execution"},
	{"S307", regexp.MustCompile(`\beval\s*\(`), "", protocol.DiagnosticSeverityError, "use of eval() allows arbitrary code execution"},
	{"S301", regexp.MustCompile(`\b(?:pickle|cPickle|marshal)\.loads?\s*\(`), "", protocol.DiagnosticSeverityWarning, "deserialising untrusted data with pickle/marshal is unsafe"},
	{"S506", regexp.MustCompile(`\byaml\.load\s*\(`), "Loader", protocol.DiagnosticSeverityWarning, "yaml.load without a safe Loader"},
	{"S602", regexp.MustCompile(`subprocess\.\w+\(.*shell\s*=\s*True`), "", protocol.DiagnosticSeverityError, "subprocess call with shell=True"},
	{"S605", regexp.MustCompile(`\bos\.(?:system|popen)\s*\(`), "", protocol.DiagnosticSeverityWarning, "starting a process with a shell"},
	{"S105", regexp.MustCompile(`(?i)\b(?:password|passwd|secret|api_key|token)\s*=\s*["'][^"']+["']`), "", protocol.DiagnosticSeverityError, "possible hardcoded secret"},
	{"S324", regexp.MustCompile(`\bhashlib\.(?:md5|sha1)\s*\(`), "", protocol.DiagnosticSeverityWarning, "weak hash function"},
	{"S501", regexp.MustCompile(`verify\s*=\s*False`), "", protocol.DiagnosticSeverityWarning, "TLS certificate verification disabled"},
	{"S311", regexp.MustCompile(`\brandom\.(?:random|randint|choice)\s*\(`), "", protocol.DiagnosticSeverityInformation, "standard pseudo-random generators are not suitable for security"},
}

// scanSecurity matches the rule table against code (comments excluded).
func scanSecurity(src *sourceFile) []protocol.Diagnostic {
	var diags []protocol.Diagnostic
	for i, line := range src.lines {
		code := stripComment(line)
		for _, rule := range securityRules {
			if rule.unless != "" && strings.Contains(code, rule.unless) {
				continue
			}
			if loc := rule.pattern.FindStringIndex(code); loc != nil {
				diags = append(diags, diagnostic(i, loc[0], loc[1], rule.severity, rule.code, "codebuddy-security", rule.message))
			}
		}
	}
	return diags
}

// SecurityScanTool flags risky Python constructs.
type SecurityScanTool struct {
	Workspace Workspace
}

func (t *SecurityScanTool) Name() string { return "security_scan" }
func (t *SecurityScanTool) Description() string {
	return "Scans a Python file for common security issues."
}
func (t *SecurityScanTool) Category() string { return "analysis" }
func (t *SecurityScanTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *SecurityScanTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	src, failed := loadSource(t.Workspace, params.String("filepath"))
	if failed != nil {
		return failed, nil
	}
	diags := scanSecurity(src)
	msg := fmt.Sprintf("No security issues found in %s", src.rel)
	if len(diags) > 0 {
		msg = fmt.Sprintf("%d potential security issue(s) in %s:\n%s", len(diags), src.rel, renderDiagnostics(src.rel, diags))
	}
	return framework.Succeeded(msg, map[string]interface{}{"path": src.rel, "diagnostics": diags}), nil
}
func (t *SecurityScanTool) IsAvailable(ctx context.Context) bool { return true }

// FunctionComplexity is the cyclomatic estimate for one function.
type FunctionComplexity struct {
	Name       string `json:"name"`
	Line       int    `json:"line"`
	Lines      int    `json:"lines"`
	Complexity int    `json:"complexity"`
	Docstring  bool   `json:"docstring"`
}

// Rating maps a complexity score to a letter grade.
func (f FunctionComplexity) Rating() string {
	switch {
	case f.Complexity <= 5:
		return "A"
	case f.Complexity <= 10:
		return "B"
	case f.Complexity <= 20:
		return "C"
	default:
		return "D"
	}
}

// measureFunctions estimates complexity as 1 + decision points, using
// indentation to find each def's body.
func measureFunctions(src *sourceFile) []FunctionComplexity {
	var out []FunctionComplexity
	for i, line := range src.lines {
		m := defLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		fn := FunctionComplexity{Name: m[2], Line: i + 1, Complexity: 1}
		end := i + 1
		for ; end < len(src.lines); end++ {
			body := src.lines[end]
			if strings.TrimSpace(body) == "" {
				continue
			}
			if len(leadingWhitespace(body)) <= indent {
				break
			}
		}
		fn.Lines = end - i
		firstBody := true
		for _, body := range src.lines[i+1 : end] {
			trimmed := strings.TrimSpace(body)
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			if firstBody {
				fn.Docstring = strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "'''")
				firstBody = false
			}
			if defLine.MatchString(body) {
				continue
			}
			fn.Complexity += len(decisionWords.FindAllString(stripComment(body), -1))
		}
		out = append(out, fn)
	}
	return out
}

// ComplexityTool reports per-function complexity.
type ComplexityTool struct {
	Workspace Workspace
}

func (t *ComplexityTool) Name() string { return "analyze_complexity" }
func (t *ComplexityTool) Description() string {
	return "Estimates cyclomatic complexity for each function in a Python file."
}
func (t *ComplexityTool) Category() string { return "analysis" }
func (t *ComplexityTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *ComplexityTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	src, failed := loadSource(t.Workspace, params.String("filepath"))
	if failed != nil {
		return failed, nil
	}
	funcs := measureFunctions(src)
	if len(funcs) == 0 {
		return framework.Succeeded(fmt.Sprintf("No functions found in %s", src.rel),
			map[string]interface{}{"path": src.rel, "functions": funcs}), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Complexity of %s:\n", src.rel)
	total := 0
	for _, f := range funcs {
		total += f.Complexity
		fmt.Fprintf(&b, "  %s (line %d): %d [%s]\n", f.Name, f.Line, f.Complexity, f.Rating())
	}
	avg := float64(total) / float64(len(funcs))
	fmt.Fprintf(&b, "Average complexity: %.1f", avg)
	return framework.Succeeded(b.String(), map[string]interface{}{
		"path":      src.rel,
		"functions": funcs,
		"average":   avg,
	}), nil
}
func (t *ComplexityTool) IsAvailable(ctx context.Context) bool { return true }

// pythonStdlib lists common standard-library modules so they are not
// reported as missing requirements.
var pythonStdlib = map[string]bool{
	"abc": true, "argparse": true, "ast": true, "asyncio": true, "base64": true, "collections": true,
	"contextlib": true, "copy": true, "csv": true, "dataclasses": true, "datetime": true, "enum": true,
	"functools": true, "glob": true, "hashlib": true, "http": true, "importlib": true, "inspect": true,
	"io": true, "itertools": true, "json": true, "logging": true, "math": true, "os": true, "pathlib": true,
	"pickle": true, "random": true, "re": true, "shutil": true, "socket": true, "sqlite3": true,
	"string": true, "subprocess": true, "sys": true, "tempfile": true, "threading": true, "time": true,
	"typing": true, "unittest": true, "urllib": true, "uuid": true, "warnings": true, "__future__": true,
}

var requirementName = regexp.MustCompile(`^\s*([A-Za-z0-9_.-]+)`)

// DependencyTool inventories imports across the workspace's Python files.
type DependencyTool struct {
	Workspace Workspace
}

func (t *DependencyTool) Name() string { return "analyze_dependencies" }
func (t *DependencyTool) Description() string {
	return "Lists third-party imports and compares them with requirements.txt."
}
func (t *DependencyTool) Category() string { return "analysis" }
func (t *DependencyTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("folderpath", framework.KindString, false, "folder to scan").WithDefault(framework.StringValue(".")),
	}
}
func (t *DependencyTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	root, err := t.Workspace.Resolve(folderOrRoot(params))
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	local := map[string]bool{}
	imports := map[string][]string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return fs.SkipDir
			}
			if _, err := os.Stat(filepath.Join(path, "__init__.py")); err == nil {
				local[d.Name()] = true
			}
			return nil
		}
		if filepath.Ext(path) != ".py" {
			return nil
		}
		local[strings.TrimSuffix(d.Name(), ".py")] = true
		return scanImports(path, t.Workspace.Rel(path), imports)
	})
	if err != nil {
		return framework.Failed("cannot scan %s: %v", t.Workspace.Rel(root), err), nil
	}
	required := readRequirements(filepath.Join(root, "requirements.txt"))
	var thirdParty, missing []string
	for mod := range imports {
		if pythonStdlib[mod] || local[mod] {
			continue
		}
		thirdParty = append(thirdParty, mod)
		if !required[normalizeRequirement(mod)] {
			missing = append(missing, mod)
		}
	}
	sort.Strings(thirdParty)
	sort.Strings(missing)
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d imported module(s), %d third-party", len(imports), len(thirdParty))
	if len(thirdParty) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(thirdParty, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "\nMissing from requirements.txt: %s", strings.Join(missing, ", "))
	}
	return framework.Succeeded(b.String(), map[string]interface{}{
		"imports":     imports,
		"third_party": thirdParty,
		"missing":     missing,
	}), nil
}
func (t *DependencyTool) IsAvailable(ctx context.Context) bool { return true }

func scanImports(path, rel string, into map[string][]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		var mod string
		if m := importLine.FindStringSubmatch(line); m != nil {
			mod = m[1]
		} else if m := fromImportLine.FindStringSubmatch(line); m != nil && !strings.HasPrefix(m[1], ".") {
			mod = m[1]
		}
		if mod == "" {
			continue
		}
		top := strings.Split(mod, ".")[0]
		if !containsString(into[top], rel) {
			into[top] = append(into[top], rel)
		}
	}
	return scanner.Err()
}

func readRequirements(path string) map[string]bool {
	out := map[string]bool{}
	data, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if m := requirementName.FindStringSubmatch(line); m != nil {
			out[normalizeRequirement(m[1])] = true
		}
	}
	return out
}

func normalizeRequirement(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// QualityReport summarises a file's maintainability.
type QualityReport struct {
	Lines           int      `json:"lines"`
	CodeLines       int      `json:"code_lines"`
	CommentLines    int      `json:"comment_lines"`
	Functions       int      `json:"functions"`
	Classes         int      `json:"classes"`
	DocstringCover  float64  `json:"docstring_coverage"`
	AverageComplex  float64  `json:"average_complexity"`
	LintIssues      int      `json:"lint_issues"`
	SecurityIssues  int      `json:"security_issues"`
	Score           int      `json:"score"`
	Recommendations []string `json:"recommendations,omitempty"`
}

func assessQuality(src *sourceFile) QualityReport {
	r := QualityReport{Lines: len(src.lines)}
	for _, line := range src.lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, "#"):
			r.CommentLines++
		default:
			r.CodeLines++
		}
		if classLine.MatchString(line) {
			r.Classes++
		}
	}
	funcs := measureFunctions(src)
	r.Functions = len(funcs)
	documented, total := 0, 0
	for _, f := range funcs {
		total += f.Complexity
		if f.Docstring {
			documented++
		}
	}
	if len(funcs) > 0 {
		r.DocstringCover = float64(documented) / float64(len(funcs))
		r.AverageComplex = float64(total) / float64(len(funcs))
	}
	r.LintIssues = len(lintPython(src))
	r.SecurityIssues = len(scanSecurity(src))

	score := 100
	score -= 2 * r.LintIssues
	score -= 10 * r.SecurityIssues
	if r.AverageComplex > 10 {
		score -= 15
		r.Recommendations = append(r.Recommendations, "split complex functions into smaller ones")
	} else if r.AverageComplex > 5 {
		score -= 5
	}
	if r.Functions > 0 && r.DocstringCover < 0.5 {
		score -= 10
		r.Recommendations = append(r.Recommendations, "add docstrings to public functions")
	}
	if r.CodeLines > 20 && r.CommentLines == 0 {
		score -= 5
		r.Recommendations = append(r.Recommendations, "add comments explaining non-obvious code")
	}
	if r.LintIssues > 0 {
		r.Recommendations = append(r.Recommendations, "fix the reported lint issues")
	}
	if r.SecurityIssues > 0 {
		r.Recommendations = append(r.Recommendations, "review the reported security issues")
	}
	if score < 0 {
		score = 0
	}
	r.Score = score
	return r
}

// CodeQualityTool reports an overall quality score.
type CodeQualityTool struct {
	Workspace Workspace
}

func (t *CodeQualityTool) Name() string { return "code_quality" }
func (t *CodeQualityTool) Description() string {
	return "Scores a Python file on structure, documentation, lint and security."
}
func (t *CodeQualityTool) Category() string { return "analysis" }
func (t *CodeQualityTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{pathParam}
}
func (t *CodeQualityTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	src, failed := loadSource(t.Workspace, params.String("filepath"))
	if failed != nil {
		return failed, nil
	}
	r := assessQuality(src)
	var b strings.Builder
	fmt.Fprintf(&b, "Quality score for %s: %d/100\n", src.rel, r.Score)
	fmt.Fprintf(&b, "  %d lines (%d code, %d comments), %d functions, %d classes\n",
		r.Lines, r.CodeLines, r.CommentLines, r.Functions, r.Classes)
	fmt.Fprintf(&b, "  docstring coverage %.0f%%, average complexity %.1f\n", r.DocstringCover*100, r.AverageComplex)
	fmt.Fprintf(&b, "  %d lint issue(s), %d security issue(s)", r.LintIssues, r.SecurityIssues)
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "\n  - %s", rec)
	}
	return framework.Succeeded(b.String(), map[string]interface{}{"path": src.rel, "report": r}), nil
}
func (t *CodeQualityTool) IsAvailable(ctx context.Context) bool { return true }

// AnalysisTools returns the static analysis tools.
func AnalysisTools(ws Workspace) []framework.Tool {
	return []framework.Tool{
		&PythonLintTool{Workspace: ws},
		&SecurityScanTool{Workspace: ws},
		&ComplexityTool{Workspace: ws},
		&DependencyTool{Workspace: ws},
		&CodeQualityTool{Workspace: ws},
		&CodebaseTool{Workspace: ws},
	}
}
