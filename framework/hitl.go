package framework

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RiskLevel models the qualitative assessment that gates tool execution.
// Levels are ordered by severity; ordering is used for display only.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}

// MarshalText encodes the level by name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name.
func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// ParseRiskLevel converts a level name.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return RiskSafe, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	}
	return RiskSafe, fmt.Errorf("unknown risk level %q", s)
}

// ErrApprovalDenied marks a tool call the human declined.
var ErrApprovalDenied = errors.New("approval denied")

// DefaultConfirmationPhrase must be typed verbatim to approve Critical
// operations.
const DefaultConfirmationPhrase = "I UNDERSTAND THE RISKS"

// ApprovalRequest captures one pending approval round-trip. It is never
// persisted.
type ApprovalRequest struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Operation   string    `json:"operation"`
	Description string    `json:"description"`
	Risk        RiskLevel `json:"risk"`
	Details     Params    `json:"details,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	// Phrase is the exact confirmation text required when Risk is Critical.
	Phrase      string    `json:"phrase,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequiresPhrase reports whether a yes/no answer is insufficient.
func (r ApprovalRequest) RequiresPhrase() bool {
	return r.Risk == RiskCritical
}

// Approver is the approval collaborator. Implementations block until a human
// answers; Critical requests must demand the exact confirmation phrase.
type Approver interface {
	AskApproval(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function into an Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

// AskApproval calls f.
func (f ApproverFunc) AskApproval(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// ApprovalDecision encapsulates an answer submitted to the broker.
type ApprovalDecision struct {
	RequestID    string `json:"request_id"`
	Approved     bool   `json:"approved"`
	Confirmation string `json:"confirmation,omitempty"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// HITLEventType describes the lifecycle stage of an approval request.
type HITLEventType string

const (
	HITLEventRequested HITLEventType = "requested"
	HITLEventResolved  HITLEventType = "resolved"
	HITLEventExpired   HITLEventType = "expired"
)

// HITLEvent is emitted whenever a request is created, resolved, or expires.
type HITLEvent struct {
	Type     HITLEventType     `json:"type"`
	Request  *ApprovalRequest  `json:"request,omitempty"`
	Decision *ApprovalDecision `json:"decision,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// HITLBroker is an Approver for surfaces that cannot block on a terminal,
// such as the HTTP and RPC servers. AskApproval parks the request until
// Resolve is called from another goroutine or the timeout elapses.
type HITLBroker struct {
	timeout  time.Duration
	mu       sync.Mutex
	requests map[string]*ApprovalRequest
	waiters  map[string]chan ApprovalDecision
	subs     map[int]chan HITLEvent
	subSeq   int
	clock    func() time.Time
}

// NewHITLBroker builds a broker with the supplied timeout.
func NewHITLBroker(timeout time.Duration) *HITLBroker {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &HITLBroker{
		timeout:  timeout,
		requests: make(map[string]*ApprovalRequest),
		waiters:  make(map[string]chan ApprovalDecision),
		subs:     make(map[int]chan HITLEvent),
		clock:    time.Now,
	}
}

// Subscribe returns a channel that receives lifecycle events.
// Call the returned cancel function to unsubscribe.
func (h *HITLBroker) Subscribe(buffer int) (<-chan HITLEvent, func()) {
	if h == nil {
		ch := make(chan HITLEvent)
		close(ch)
		return ch, func() {}
	}
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan HITLEvent, buffer)
	h.mu.Lock()
	id := h.subSeq
	h.subSeq++
	h.subs[id] = ch
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		sub, ok := h.subs[id]
		if ok {
			delete(h.subs, id)
		}
		h.mu.Unlock()
		if ok {
			close(sub)
		}
	}
	return ch, cancel
}

func (h *HITLBroker) broadcast(event HITLEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *HITLBroker) forget(id string) {
	h.mu.Lock()
	delete(h.requests, id)
	delete(h.waiters, id)
	h.mu.Unlock()
}

// AskApproval registers the request and waits for a decision. Critical
// requests are only approved when the decision carries the exact phrase.
func (h *HITLBroker) AskApproval(ctx context.Context, req ApprovalRequest) (bool, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = h.clock()
	}
	waitCh := make(chan ApprovalDecision, 1)

	h.mu.Lock()
	h.requests[req.ID] = &req
	h.waiters[req.ID] = waitCh
	h.mu.Unlock()
	h.broadcast(HITLEvent{Type: HITLEventRequested, Request: &req})

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case decision := <-waitCh:
		h.forget(req.ID)
		approved := decision.Approved
		if approved && req.RequiresPhrase() && decision.Confirmation != req.Phrase {
			approved = false
			decision.Reason = "confirmation phrase mismatch"
		}
		decision.Approved = approved
		h.broadcast(HITLEvent{Type: HITLEventResolved, Request: &req, Decision: &decision})
		return approved, nil
	case <-ctx.Done():
		h.forget(req.ID)
		h.broadcast(HITLEvent{Type: HITLEventExpired, Request: &req, Error: ctx.Err().Error()})
		return false, ctx.Err()
	case <-timer.C:
		h.forget(req.ID)
		h.broadcast(HITLEvent{Type: HITLEventExpired, Request: &req, Error: "timed out"})
		return false, fmt.Errorf("approval request %s timed out", req.Operation)
	}
}

// Resolve delivers a decision to a pending request.
func (h *HITLBroker) Resolve(decision ApprovalDecision) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.requests[decision.RequestID]; !ok {
		return fmt.Errorf("request %s not found", decision.RequestID)
	}
	waiter, ok := h.waiters[decision.RequestID]
	if !ok {
		return fmt.Errorf("request %s already resolved", decision.RequestID)
	}
	delete(h.waiters, decision.RequestID)
	waiter <- decision
	close(waiter)
	return nil
}

// PendingRequests returns the outstanding approvals oldest first.
func (h *HITLBroker) PendingRequests() []ApprovalRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	pending := make([]ApprovalRequest, 0, len(h.requests))
	for _, req := range h.requests {
		pending = append(pending, *req)
	}
	for i := 1; i < len(pending); i++ {
		for j := i; j > 0 && pending[j].RequestedAt.Before(pending[j-1].RequestedAt); j-- {
			pending[j], pending[j-1] = pending[j-1], pending[j]
		}
	}
	return pending
}
