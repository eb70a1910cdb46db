package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

const (
	maxCodebaseFiles   = 200
	complexThreshold   = 10
	lowScoreThreshold  = 70
	reportedFileScores = 3
)

// FileScore is one file's quality score in a codebase report.
type FileScore struct {
	Path  string `json:"path"`
	Score int    `json:"score"`
}

// CodebaseReport aggregates the per-file analyses over a folder.
type CodebaseReport struct {
	Files           int         `json:"files"`
	Skipped         int         `json:"skipped"`
	TestFiles       []string    `json:"test_files"`
	HasManifest     bool        `json:"has_manifest"`
	AverageScore    float64     `json:"average_score"`
	LintIssues      int         `json:"lint_issues"`
	SecurityIssues  int         `json:"security_issues"`
	LowScores       []FileScore `json:"low_scores,omitempty"`
	Complex         []string    `json:"complex_functions,omitempty"`
	ThirdParty      []string    `json:"third_party,omitempty"`
	MissingDeps     []string    `json:"missing_dependencies,omitempty"`
	Recommendations []string    `json:"recommendations"`
}

func isTestFile(rel string) bool {
	base := filepath.Base(rel)
	if strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if part == "tests" || part == "test" {
			return true
		}
	}
	return false
}

// CodebaseTool runs structure, quality, complexity, dependency and test
// checks over every Python file in a folder.
type CodebaseTool struct {
	Workspace Workspace
}

func (t *CodebaseTool) Name() string { return "analyze_codebase" }
func (t *CodebaseTool) Description() string {
	return "Analyzes a whole folder: structure, quality, complexity, dependencies and tests."
}
func (t *CodebaseTool) Category() string { return "analysis" }
func (t *CodebaseTool) Parameters() []framework.ToolParameter {
	return []framework.ToolParameter{
		framework.Param("folderpath", framework.KindString, false, "folder to analyze").WithDefault(framework.StringValue(".")),
	}
}
func (t *CodebaseTool) Execute(ctx context.Context, params framework.Params) (*framework.ToolResult, error) {
	folder := folderOrRoot(params)
	root, err := t.Workspace.Resolve(folder)
	if err != nil {
		return framework.Failed("%v", err), nil
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return framework.Failed("folder not found: %s", folder), nil
	}
	rel := t.Workspace.Rel(root)

	var files []string
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
			return nil
		}
		if filepath.Ext(path) == ".py" {
			files = append(files, t.Workspace.Rel(path))
		}
		return nil
	})
	if err != nil {
		return framework.Failed("cannot scan %s: %v", rel, err), nil
	}
	if len(files) == 0 {
		return framework.Succeeded(fmt.Sprintf("No Python files found in %s", rel),
			map[string]interface{}{"path": rel, "report": CodebaseReport{}}), nil
	}
	sort.Strings(files)

	r := CodebaseReport{}
	for _, name := range []string{"requirements.txt", "pyproject.toml", "setup.py"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			r.HasManifest = true
		}
	}
	var scores []FileScore
	total := 0
	for i, f := range files {
		if isTestFile(f) {
			r.TestFiles = append(r.TestFiles, f)
		}
		if i >= maxCodebaseFiles {
			r.Skipped++
			continue
		}
		src, failed := loadSource(t.Workspace, f)
		if failed != nil {
			r.Skipped++
			continue
		}
		q := assessQuality(src)
		r.Files++
		r.LintIssues += q.LintIssues
		r.SecurityIssues += q.SecurityIssues
		total += q.Score
		scores = append(scores, FileScore{Path: f, Score: q.Score})
		for _, fn := range measureFunctions(src) {
			if fn.Complexity > complexThreshold {
				r.Complex = append(r.Complex, fmt.Sprintf("%s:%s (%d)", f, fn.Name, fn.Complexity))
			}
		}
	}
	if r.Files > 0 {
		r.AverageScore = float64(total) / float64(r.Files)
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score < scores[j].Score })
	for _, s := range scores {
		if s.Score >= lowScoreThreshold || len(r.LowScores) == reportedFileScores {
			break
		}
		r.LowScores = append(r.LowScores, s)
	}

	deps, err := (&DependencyTool{Workspace: t.Workspace}).Execute(ctx, framework.Params{"folderpath": framework.StringValue(folder)})
	if err == nil && deps.Success {
		r.ThirdParty, _ = deps.Data["third_party"].([]string)
		r.MissingDeps, _ = deps.Data["missing"].([]string)
	}
	r.Recommendations = codebaseRecommendations(r)

	return framework.Succeeded(renderCodebaseReport(rel, r), map[string]interface{}{"path": rel, "report": r}), nil
}
func (t *CodebaseTool) IsAvailable(ctx context.Context) bool { return true }

func codebaseRecommendations(r CodebaseReport) []string {
	var recs []string
	if len(r.TestFiles) == 0 {
		recs = append(recs, "add a test suite")
	}
	if r.LintIssues > 0 {
		recs = append(recs, "run python_lint and fix the style issues")
	}
	if r.SecurityIssues > 0 {
		recs = append(recs, "review the security_scan findings")
	}
	if len(r.Complex) > 0 {
		recs = append(recs, "refactor the high-complexity functions")
	}
	if !r.HasManifest && len(r.ThirdParty) > 0 {
		recs = append(recs, "add requirements.txt for dependency management")
	} else if len(r.MissingDeps) > 0 {
		recs = append(recs, "add missing requirements: "+strings.Join(r.MissingDeps, ", "))
	}
	if len(recs) == 0 {
		recs = append(recs, "codebase looks good; consider adding documentation")
	}
	return recs
}

func renderCodebaseReport(rel string, r CodebaseReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Codebase analysis of %s:\n", rel)
	manifest := "no dependency manifest"
	if r.HasManifest {
		manifest = "dependency manifest found"
	}
	fmt.Fprintf(&b, "  Structure: %d Python file(s), %d test file(s), %s\n", r.Files+r.Skipped, len(r.TestFiles), manifest)
	fmt.Fprintf(&b, "  Quality: average score %.0f/100, %d lint issue(s), %d security issue(s)\n",
		r.AverageScore, r.LintIssues, r.SecurityIssues)
	if len(r.LowScores) > 0 {
		parts := make([]string, len(r.LowScores))
		for i, s := range r.LowScores {
			parts[i] = fmt.Sprintf("%s (%d)", s.Path, s.Score)
		}
		fmt.Fprintf(&b, "  Lowest scores: %s\n", strings.Join(parts, ", "))
	}
	if len(r.Complex) > 0 {
		fmt.Fprintf(&b, "  Complexity: high in %s\n", strings.Join(r.Complex, ", "))
	} else {
		b.WriteString("  Complexity: manageable\n")
	}
	fmt.Fprintf(&b, "  Dependencies: %d third-party", len(r.ThirdParty))
	if len(r.MissingDeps) > 0 {
		fmt.Fprintf(&b, ", missing from requirements.txt: %s", strings.Join(r.MissingDeps, ", "))
	}
	b.WriteString("\n")
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "  Skipped %d file(s)\n", r.Skipped)
	}
	b.WriteString("Recommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "\n  - %s", rec)
	}
	return b.String()
}
