package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ruleset groups project instructions added to every reasoning prompt.
type Ruleset struct {
	CodingStandards []string `yaml:"coding_standards"`
	BestPractices   []string `yaml:"best_practices"`
}

// DefaultRulesPath returns .codebuddy/rules.yaml within the workspace.
func DefaultRulesPath(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "rules.yaml")
}

// LoadRuleset reads rules.yaml. A missing file yields an empty ruleset.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Ruleset{}, nil
		}
		return nil, err
	}
	var rules Ruleset
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rules, nil
}

// Prompt renders the ruleset as a prompt section; empty when no rules exist.
func (r *Ruleset) Prompt() string {
	if r == nil || len(r.CodingStandards)+len(r.BestPractices) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Project rules:\n")
	for _, s := range r.CodingStandards {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	for _, s := range r.BestPractices {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String()
}
