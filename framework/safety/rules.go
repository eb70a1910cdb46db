// Package safety scores tool invocations by risk and gates the risky ones
// behind human approval.
package safety

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lexcodex/codebuddy/framework"
)

// Policy holds the name lists the rules consult. Matching is case-insensitive.
type Policy struct {
	// DeleteProtected marks files whose deletion is High risk.
	DeleteProtected []string `yaml:"delete_protected"`
	// WriteProtected marks files whose overwrite is Medium risk.
	WriteProtected []string `yaml:"write_protected"`
	// RefactorProtected marks files whose refactoring is High risk.
	RefactorProtected []string `yaml:"refactor_protected"`
	ProtectedBranches []string `yaml:"protected_branches"`
	CriticalDirs      []string `yaml:"critical_dirs"`
	SuspiciousCommits []string `yaml:"suspicious_commit_words"`
	CriticalCommands  []string `yaml:"critical_commands"`
	HighCommands      []string `yaml:"high_commands"`
	MediumCommands    []string `yaml:"medium_commands"`
	// ConfirmationPhrase must be typed to approve Critical operations.
	ConfirmationPhrase string `yaml:"confirmation_phrase"`
}

// DefaultPolicy returns the built-in lists.
func DefaultPolicy() Policy {
	return Policy{
		DeleteProtected:   []string{"main.py", "requirements.txt", ".env", "config", "database", ".git", "package.json", "cargo.toml", "go.mod"},
		WriteProtected:    []string{"main.py", "requirements.txt", ".env", "config"},
		RefactorProtected: []string{"main.py", "__init__.py", "setup.py"},
		ProtectedBranches: []string{"main", "master", "production", "prod"},
		CriticalDirs:      []string{".git", "node_modules", "__pycache__", ".venv", "venv", "src", "lib", "bin", "core", "system"},
		SuspiciousCommits: []string{"wip", "temp", "test", "debug", "hack", "fix later", "todo", "broken", "experimental"},
		CriticalCommands: []string{
			"rm -rf", "rm -fr", "del /f", "format", "fdisk", "mkfs", "shutdown", "reboot",
			"halt", "poweroff", "dd if=", "chmod 777", "chmod -r 777", "chown root", "sudo rm",
		},
		HighCommands: []string{
			"rm ", "del ", "rmdir", "move", "mv ", "chmod", "chown", "sudo", "su ",
			"kill", "pkill", "killall",
		},
		MediumCommands: []string{
			"cp ", "copy", "wget", "curl", "scp ", "rsync", "git push", "npm install",
			"pip install", "apt install", "apt-get install",
		},
		ConfirmationPhrase: framework.DefaultConfirmationPhrase,
	}
}

// withDefaults fills empty lists from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&p.DeleteProtected, d.DeleteProtected)
	fill(&p.WriteProtected, d.WriteProtected)
	fill(&p.ProtectedBranches, d.ProtectedBranches)
	fill(&p.CriticalDirs, d.CriticalDirs)
	fill(&p.SuspiciousCommits, d.SuspiciousCommits)
	fill(&p.RefactorProtected, d.RefactorProtected)
	fill(&p.CriticalCommands, d.CriticalCommands)
	fill(&p.HighCommands, d.HighCommands)
	fill(&p.MediumCommands, d.MediumCommands)
	if p.ConfirmationPhrase == "" {
		p.ConfirmationPhrase = d.ConfirmationPhrase
	}
	return p
}

// Rule scores one tool's parameters.
type Rule func(c *Classifier, params framework.Params) framework.RiskLevel

func fixed(level framework.RiskLevel) Rule {
	return func(*Classifier, framework.Params) framework.RiskLevel { return level }
}

// defaultRules dispatches by tool name. Tools missing here score Low.
func defaultRules() map[string]Rule {
	safe := fixed(framework.RiskSafe)
	return map[string]Rule{
		"read_file":            safe,
		"list_files":           safe,
		"create_folder":        safe,
		"check_syntax":         safe,
		"python_lint":          safe,
		"analyze_complexity":   safe,
		"security_scan":        safe,
		"analyze_dependencies": safe,
		"code_quality":         safe,
		"analyze_codebase":     safe,
		"code_template":        safe,
		"code_snippet":         safe,
		"git_status":           safe,
		"git_diff":             safe,
		"git_log":              safe,
		"git_add":              fixed(framework.RiskLow),
		"run_python":           fixed(framework.RiskLow),
		"run_tests":            fixed(framework.RiskLow),
		"write_file":           (*Classifier).writeFileRisk,
		"delete_file":          (*Classifier).deleteFileRisk,
		"delete_folder":        (*Classifier).deleteFolderRisk,
		"run_command":          (*Classifier).commandRisk,
		"git_commit":           (*Classifier).commitRisk,
		"git_push":             (*Classifier).pushRisk,
		"git_pull":             (*Classifier).pullRisk,
		"git_branch":           (*Classifier).branchRisk,
		"refactor_code":        (*Classifier).refactorRisk,
	}
}

const largeFileBytes = 1024 * 1024

func (c *Classifier) writeFileRisk(params framework.Params) framework.RiskLevel {
	path := c.resolve(params.String("filepath"))
	if _, err := os.Stat(path); err != nil {
		return framework.RiskSafe
	}
	if containsAny(strings.ToLower(filepath.Base(path)), c.policy.WriteProtected) {
		return framework.RiskMedium
	}
	return framework.RiskLow
}

func (c *Classifier) deleteFileRisk(params framework.Params) framework.RiskLevel {
	path := c.resolve(params.String("filepath"))
	info, err := os.Stat(path)
	if err != nil {
		return framework.RiskSafe
	}
	if containsAny(strings.ToLower(filepath.Base(path)), c.policy.DeleteProtected) {
		return framework.RiskHigh
	}
	if info.Size() > largeFileBytes {
		return framework.RiskMedium
	}
	return framework.RiskLow
}

func (c *Classifier) deleteFolderRisk(params framework.Params) framework.RiskLevel {
	raw := params.String("folderpath")
	path := c.resolve(raw)
	if _, err := os.Stat(path); err != nil {
		return framework.RiskSafe
	}
	if hasCriticalComponent(raw, c.policy.CriticalDirs) {
		return framework.RiskHigh
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return framework.RiskMedium
	}
	switch n := len(entries); {
	case n > 50:
		return framework.RiskHigh
	case n > 10:
		return framework.RiskMedium
	case n > 0:
		return framework.RiskLow
	default:
		return framework.RiskSafe
	}
}

// hasCriticalComponent reports whether the path contains a critical
// directory name anywhere, so venv_old and src_backup count too.
func hasCriticalComponent(path string, critical []string) bool {
	clean := filepath.ToSlash(filepath.Clean(strings.ToLower(path)))
	return containsAny(clean, critical)
}

var spaceRun = regexp.MustCompile(`\s+`)

// commandRisk matches the normalised command against the tiers. This is a
// heuristic over a fixed list, not a sandbox.
func (c *Classifier) commandRisk(params framework.Params) framework.RiskLevel {
	cmd := strings.ToLower(strings.TrimSpace(spaceRun.ReplaceAllString(params.String("command"), " ")))
	switch {
	case cmd == "":
		return framework.RiskLow
	case matchesCommand(cmd, c.policy.CriticalCommands):
		return framework.RiskCritical
	case matchesCommand(cmd, c.policy.HighCommands):
		return framework.RiskHigh
	case matchesCommand(cmd, c.policy.MediumCommands):
		return framework.RiskMedium
	default:
		return framework.RiskLow
	}
}

// matchesCommand reports whether a pattern occurs at the start of a word:
// at the beginning, or after whitespace, a shell separator, a path separator
// or an alias-escaping backslash. /bin/rm and \rm therefore match "rm".
// Patterns with a trailing space also match at the very end of the command.
func matchesCommand(cmd string, patterns []string) bool {
	padded := cmd + " "
	for _, p := range patterns {
		p = strings.ToLower(p)
		for from := 0; from < len(padded); {
			idx := strings.Index(padded[from:], p)
			if idx < 0 {
				break
			}
			at := from + idx
			if at == 0 || strings.ContainsRune(" \t;|&`($/\\", rune(padded[at-1])) {
				return true
			}
			from = at + 1
		}
	}
	return false
}

// refactorRisk rates entry points High and the combined auto refactoring
// Medium. A dry run writes nothing.
func (c *Classifier) refactorRisk(params framework.Params) framework.RiskLevel {
	if params.Bool("dry_run", false) {
		return framework.RiskSafe
	}
	if containsAny(strings.ToLower(params.String("filepath")), c.policy.RefactorProtected) {
		return framework.RiskHigh
	}
	switch strings.ToLower(params.String("refactor_type")) {
	case "", "auto":
		return framework.RiskMedium
	default:
		return framework.RiskLow
	}
}

func (c *Classifier) commitRisk(params framework.Params) framework.RiskLevel {
	msg := strings.ToLower(strings.TrimSpace(params.String("message")))
	if msg == "" || containsAny(msg, c.policy.SuspiciousCommits) {
		return framework.RiskMedium
	}
	return framework.RiskLow
}

func (c *Classifier) pushRisk(params framework.Params) framework.RiskLevel {
	if c.protectedBranch(params.String("branch")) {
		return framework.RiskHigh
	}
	return framework.RiskMedium
}

func (c *Classifier) pullRisk(params framework.Params) framework.RiskLevel {
	if c.protectedBranch(params.String("branch")) {
		return framework.RiskHigh
	}
	return framework.RiskLow
}

func (c *Classifier) branchRisk(params framework.Params) framework.RiskLevel {
	name := params.String("branch_name")
	if name == "" {
		name = params.String("branch")
	}
	switch strings.ToLower(params.String("action")) {
	case "", "list":
		return framework.RiskSafe
	case "delete":
		if c.protectedBranch(name) {
			return framework.RiskHigh
		}
		return framework.RiskMedium
	default:
		return framework.RiskLow
	}
}

func (c *Classifier) protectedBranch(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	for _, b := range c.policy.ProtectedBranches {
		if name == strings.ToLower(b) {
			return true
		}
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
