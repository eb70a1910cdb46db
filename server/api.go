package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
)

// Backend is what the servers need from the runtime.
type Backend interface {
	AgentFor(ctx context.Context, sessionID string) (*agents.CodingAgent, error)
	ToolList() []framework.Tool
}

// APIServer exposes the assistant over HTTP. Approvals are parked in the
// broker until a client resolves them through /api/approvals.
type APIServer struct {
	Backend Backend
	Broker  *framework.HITLBroker
	Logger  *zap.Logger
	// Timeout bounds one request, approval waits included.
	Timeout time.Duration

	upgrader websocket.Upgrader
}

// ProcessRequest is the body of POST /api/process.
type ProcessRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input"`
}

// ProcessResponse wraps the agent response with its session.
type ProcessResponse struct {
	SessionID string           `json:"session_id"`
	Response  *agents.Response `json:"response,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// DecisionRequest is the body of POST /api/approvals/{id}.
type DecisionRequest struct {
	Approved     bool   `json:"approved"`
	Confirmation string `json:"confirmation,omitempty"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// ToolInfo describes one tool for API clients.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes one tool parameter.
type ParameterInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

// ServeContext listens on addr until ctx is cancelled.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	framework.LoggerOrNop(s.Logger).Info("API listening", zap.String("addr", addr))
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler builds the router.
func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/process", s.handleProcess)
		r.Get("/tools", s.handleTools)
		r.Get("/sessions/{sessionID}/history", s.handleHistory)
		r.Get("/approvals", s.handlePending)
		r.Get("/approvals/events", s.handleEvents)
		r.Get("/approvals/history", s.handleAudit)
		r.Post("/approvals/{requestID}", s.handleDecision)
	})
	return r
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	agent, err := s.Backend.AgentFor(ctx, req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp, err := agent.Process(ctx, req.Input)
	out := ProcessResponse{SessionID: agent.SessionID, Response: resp}
	if err != nil {
		out.Error = err.Error()
		writeJSON(w, http.StatusGatewayTimeout, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DescribeTools(s.Backend.ToolList()))
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	agent, err := s.Backend.AgentFor(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	turns := agent.History()
	if turns == nil {
		turns = []framework.ConversationTurn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *APIServer) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Broker.PendingRequests())
}

func (s *APIServer) handleAudit(w http.ResponseWriter, r *http.Request) {
	agent, err := s.Backend.AgentFor(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	records, err := agent.ApprovalHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []framework.ApprovalRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *APIServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	by := req.ApprovedBy
	if by == "" {
		by = "api"
	}
	err := s.Broker.Resolve(framework.ApprovalDecision{
		RequestID:    chi.URLParam(r, "requestID"),
		Approved:     req.Approved,
		Confirmation: req.Confirmation,
		ApprovedBy:   by,
		Reason:       req.Reason,
	})
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams approval lifecycle events over a websocket until the
// client disconnects.
func (s *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, cancel := s.Broker.Subscribe(32)
	defer cancel()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		framework.LoggerOrNop(s.Logger).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// DescribeTools converts tools into their wire description.
func DescribeTools(tools []framework.Tool) []ToolInfo {
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		info := ToolInfo{Name: t.Name(), Description: t.Description(), Category: t.Category()}
		for _, p := range t.Parameters() {
			info.Parameters = append(info.Parameters, ParameterInfo{
				Name:        p.Name,
				Type:        p.Type.String(),
				Required:    p.Required,
				Description: p.Description,
			})
		}
		out = append(out, info)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
