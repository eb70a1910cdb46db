package safety

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/framework"
)

// ErrNoApprover is returned when a risky call arrives and nobody can be
// asked. The call is denied.
var ErrNoApprover = errors.New("no approval collaborator configured")

// Gate scores invocations and consults the approver for anything above Safe.
// Every decision is appended to the audit log.
type Gate struct {
	classifier  *Classifier
	approver    framework.Approver
	audit       framework.AuditLogger
	logger      *zap.Logger
	autoApprove map[string]bool
	clock       func() time.Time
}

// GateConfig wires a Gate.
type GateConfig struct {
	Classifier *Classifier
	Approver   framework.Approver
	Audit      framework.AuditLogger
	Logger     *zap.Logger
	// AutoApprove lists tools approved without asking, except at Critical.
	AutoApprove []string
}

// NewGate builds a gate. A nil audit logger gets an in-memory one.
func NewGate(cfg GateConfig) *Gate {
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(".", Policy{})
	}
	if cfg.Audit == nil {
		cfg.Audit = framework.NewInMemoryAuditLogger(0)
	}
	auto := make(map[string]bool, len(cfg.AutoApprove))
	for _, t := range cfg.AutoApprove {
		auto[t] = true
	}
	return &Gate{
		classifier:  cfg.Classifier,
		approver:    cfg.Approver,
		audit:       cfg.Audit,
		logger:      framework.LoggerOrNop(cfg.Logger),
		autoApprove: auto,
		clock:       time.Now,
	}
}

// Classifier exposes the underlying classifier.
func (g *Gate) Classifier() *Classifier { return g.classifier }

// Classify scores the invocation.
func (g *Gate) Classify(tool string, params framework.Params) framework.RiskLevel {
	return g.classifier.Classify(tool, params)
}

// RequiresApproval is true iff the invocation is not Safe.
func (g *Gate) RequiresApproval(tool string, params framework.Params) bool {
	return g.classifier.RequiresApproval(tool, params)
}

// RequestApproval blocks on the approver for non-Safe invocations and
// reports whether the call may proceed.
func (g *Gate) RequestApproval(ctx context.Context, tool string, params framework.Params) (bool, error) {
	risk := g.classifier.Classify(tool, params)
	if risk == framework.RiskSafe {
		return true, nil
	}
	req := g.NewRequest(tool, params, risk)

	var (
		approved bool
		err      error
		by       = "human"
	)
	switch {
	case g.autoApprove[tool] && risk < framework.RiskCritical:
		approved, by = true, "auto"
	case g.approver == nil:
		err = ErrNoApprover
	default:
		approved, err = g.approver.AskApproval(ctx, req)
		if err != nil {
			approved = false
		}
	}
	g.record(ctx, req, approved, by)
	if err != nil {
		return false, fmt.Errorf("approval for %s: %w", tool, err)
	}
	return approved, nil
}

// NewRequest builds the approval request for an invocation.
func (g *Gate) NewRequest(tool string, params framework.Params, risk framework.RiskLevel) framework.ApprovalRequest {
	req := framework.ApprovalRequest{
		ID:          uuid.NewString(),
		Tool:        tool,
		Operation:   tool,
		Description: Describe(tool, params),
		Risk:        risk,
		Details:     params.Clone(),
		Warnings:    Warnings(risk),
		RequestedAt: g.clock(),
	}
	if risk == framework.RiskCritical {
		req.Phrase = g.classifier.policy.ConfirmationPhrase
	}
	return req
}

func (g *Gate) record(ctx context.Context, req framework.ApprovalRequest, approved bool, by string) {
	rec := framework.ApprovalRecord{
		Timestamp:   g.clock().UTC(),
		RequestID:   req.ID,
		Tool:        req.Tool,
		Operation:   req.Operation,
		Description: req.Description,
		Risk:        req.Risk,
		Approved:    approved,
		Details:     req.Details.Interface(),
	}
	if err := g.audit.Log(ctx, rec); err != nil {
		g.logger.Warn("audit log failed", zap.String("tool", req.Tool), zap.Error(err))
	}
	g.logger.Info("approval decision",
		zap.String("tool", req.Tool),
		zap.Stringer("risk", req.Risk),
		zap.Bool("approved", approved),
		zap.String("by", by),
	)
}

// History returns every recorded decision, oldest first.
func (g *Gate) History(ctx context.Context) ([]framework.ApprovalRecord, error) {
	return g.audit.Query(ctx, framework.AuditQuery{})
}

// Describe renders the human-facing summary of an operation.
func Describe(tool string, p framework.Params) string {
	or := func(key, def string) string {
		if v := p.String(key); v != "" {
			return v
		}
		return def
	}
	switch tool {
	case "delete_file":
		return "Delete file: " + or("filepath", "unknown")
	case "delete_folder":
		return "Delete folder: " + or("folderpath", "unknown")
	case "write_file":
		return "Write to file: " + or("filepath", "unknown")
	case "run_command":
		return "Execute command: " + or("command", "unknown")
	case "run_python":
		return "Run Python script: " + or("filepath", "unknown")
	case "run_tests":
		return "Run tests: " + or("target", "all")
	case "git_add":
		return "Stage files: " + or("filepath", ".")
	case "git_commit":
		return "Commit changes: " + or("message", "no message")
	case "git_push":
		return fmt.Sprintf("Push to %s/%s", or("remote", "origin"), or("branch", "current branch"))
	case "git_pull":
		return fmt.Sprintf("Pull from %s/%s", or("remote", "origin"), or("branch", "current branch"))
	case "git_branch":
		return fmt.Sprintf("Branch %s: %s", or("action", "operation"), or("branch_name", or("branch", "")))
	case "refactor_code":
		return fmt.Sprintf("Refactor %s (%s)", or("filepath", "unknown"), or("refactor_type", "auto"))
	default:
		return "Execute " + tool
	}
}

// Warnings returns the warnings shown for a risk level.
func Warnings(risk framework.RiskLevel) []string {
	switch risk {
	case framework.RiskHigh:
		return []string{
			"This operation affects important files or directories",
			"This action cannot be easily undone",
		}
	case framework.RiskCritical:
		return []string{
			"CRITICAL: this command is potentially destructive",
			"It could damage your system or data",
			"Proceed only if you are absolutely certain",
		}
	default:
		return nil
	}
}
