package safety

import (
	"path/filepath"

	"github.com/lexcodex/codebuddy/framework"
)

// Classifier maps (tool, params) to exactly one RiskLevel through a per-tool
// rule table. Relative paths resolve against the workspace root.
type Classifier struct {
	root   string
	policy Policy
	rules  map[string]Rule
}

// NewClassifier builds a classifier for the workspace at root. Empty policy
// lists fall back to DefaultPolicy.
func NewClassifier(root string, policy Policy) *Classifier {
	if root == "" {
		root = "."
	}
	return &Classifier{
		root:   root,
		policy: policy.withDefaults(),
		rules:  defaultRules(),
	}
}

// Policy returns the effective policy.
func (c *Classifier) Policy() Policy { return c.policy }

// SetRule overrides the rule for a tool.
func (c *Classifier) SetRule(tool string, rule Rule) {
	c.rules[tool] = rule
}

// Classify scores the invocation. Unknown tools score Low so they still pass
// through a lightweight confirmation.
func (c *Classifier) Classify(tool string, params framework.Params) framework.RiskLevel {
	rule, ok := c.rules[tool]
	if !ok {
		return framework.RiskLow
	}
	if params == nil {
		params = framework.Params{}
	}
	return rule(c, params)
}

// RequiresApproval is true for every level except Safe.
func (c *Classifier) RequiresApproval(tool string, params framework.Params) bool {
	return c.Classify(tool, params) != framework.RiskSafe
}

func (c *Classifier) resolve(path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.root, path)
}
