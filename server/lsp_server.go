package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/tools"
)

// Custom methods served next to the standard LSP lifecycle.
const (
	MethodProcess          = "codebuddy/process"
	MethodTools            = "codebuddy/tools"
	MethodHistory          = "codebuddy/history"
	MethodApprove          = "codebuddy/approve"
	MethodApprovalRequired = "codebuddy/approvalRequired"
	CommandProcess         = "codebuddy.process"
)

// LSPServer speaks JSON-RPC over stdio. Open Python buffers get lint and
// security diagnostics; the codebuddy/* methods drive the agent.
type LSPServer struct {
	Backend Backend
	Broker  *framework.HITLBroker
	Logger  *zap.Logger

	mu        sync.RWMutex
	docs      map[protocol.DocumentURI]*document
	sessionID string
}

type document struct {
	uri        protocol.DocumentURI
	languageID string
	version    int32
	text       string
}

// ProcessParams is the payload of codebuddy/process.
type ProcessParams struct {
	SessionID string `json:"session_id,omitempty"`
	Input     string `json:"input"`
}

// HistoryParams is the payload of codebuddy/history.
type HistoryParams struct {
	SessionID string `json:"session_id,omitempty"`
}

// NewLSPServer builds a server instance.
func NewLSPServer(backend Backend, broker *framework.HITLBroker, logger *zap.Logger) *LSPServer {
	return &LSPServer{
		Backend: backend,
		Broker:  broker,
		Logger:  framework.LoggerOrNop(logger),
		docs:    make(map[protocol.DocumentURI]*document),
	}
}

// Serve handles one client connection until it disconnects or ctx ends.
func (s *LSPServer) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(s.handle)))
	defer conn.Close()

	if s.Broker != nil {
		events, cancel := s.Broker.Subscribe(16)
		defer cancel()
		go s.forwardApprovals(ctx, conn, events)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

// forwardApprovals pushes parked approval requests to the editor, which
// answers through codebuddy/approve.
func (s *LSPServer) forwardApprovals(ctx context.Context, conn *jsonrpc2.Conn, events <-chan framework.HITLEvent) {
	for ev := range events {
		if ev.Type != framework.HITLEventRequested || ev.Request == nil {
			continue
		}
		if err := conn.Notify(ctx, MethodApprovalRequired, ev.Request); err != nil {
			s.Logger.Debug("approval notification failed", zap.Error(err))
			return
		}
	}
}

func (s *LSPServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "initialized", "$/cancelRequest":
		return nil, nil
	case "shutdown":
		return nil, nil
	case "exit":
		return nil, conn.Close()
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		doc := &document{
			uri:        params.TextDocument.URI,
			languageID: string(params.TextDocument.LanguageID),
			version:    params.TextDocument.Version,
			text:       params.TextDocument.Text,
		}
		s.mu.Lock()
		s.docs[doc.uri] = doc
		s.mu.Unlock()
		return nil, s.publish(ctx, conn, doc.uri)
	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		if len(params.ContentChanges) == 0 {
			return nil, nil
		}
		if !s.update(params.TextDocument.URI, params.TextDocument.Version, params.ContentChanges[len(params.ContentChanges)-1].Text) {
			return nil, nil
		}
		return nil, s.publish(ctx, conn, params.TextDocument.URI)
	case "textDocument/didSave":
		var params protocol.DidSaveTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		if params.Text != "" {
			s.mu.Lock()
			if doc, ok := s.docs[params.TextDocument.URI]; ok {
				doc.text = params.Text
			}
			s.mu.Unlock()
		}
		return nil, s.publish(ctx, conn, params.TextDocument.URI)
	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		s.mu.Lock()
		delete(s.docs, params.TextDocument.URI)
		s.mu.Unlock()
		return nil, conn.Notify(ctx, "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
			URI:         params.TextDocument.URI,
			Diagnostics: []protocol.Diagnostic{},
		})
	case "workspace/executeCommand":
		var params protocol.ExecuteCommandParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		if params.Command != CommandProcess || len(params.Arguments) == 0 {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "unsupported command " + params.Command}
		}
		input, _ := params.Arguments[0].(string)
		return s.process(ctx, ProcessParams{Input: input})
	case MethodProcess:
		var params ProcessParams
		if err := decodeParams(req, &params); err != nil {
			return nil, err
		}
		return s.process(ctx, params)
	case MethodTools:
		return DescribeTools(s.Backend.ToolList()), nil
	case MethodHistory:
		var params HistoryParams
		if req.Params != nil {
			if err := decodeParams(req, &params); err != nil {
				return nil, err
			}
		}
		agent, err := s.agent(ctx, params.SessionID)
		if err != nil {
			return nil, err
		}
		turns := agent.History()
		if turns == nil {
			turns = []framework.ConversationTurn{}
		}
		return turns, nil
	case MethodApprove:
		if s.Broker == nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "approvals are not brokered"}
		}
		var decision framework.ApprovalDecision
		if err := decodeParams(req, &decision); err != nil {
			return nil, err
		}
		if decision.ApprovedBy == "" {
			decision.ApprovedBy = "editor"
		}
		return nil, s.Broker.Resolve(decision)
	}
	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled: " + req.Method}
}

func (s *LSPServer) initialize() *protocol.InitializeResult {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncKindFull,
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: []string{CommandProcess},
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: "codebuddy"},
	}
}

// process runs a request on the editor's session. Sessions are sticky per
// connection unless the client names one.
func (s *LSPServer) process(ctx context.Context, params ProcessParams) (*ProcessResponse, error) {
	agent, err := s.agent(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}
	resp, err := agent.Process(ctx, params.Input)
	if err != nil {
		return nil, err
	}
	return &ProcessResponse{SessionID: agent.SessionID, Response: resp}, nil
}

func (s *LSPServer) agent(ctx context.Context, sessionID string) (*agents.CodingAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID == "" {
		sessionID = s.sessionID
	}
	agent, err := s.Backend.AgentFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.sessionID == "" {
		s.sessionID = agent.SessionID
	}
	return agent, nil
}

// update applies a full-text change, ignoring versions older than the one
// already held.
func (s *LSPServer) update(uri protocol.DocumentURI, version int32, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		s.docs[uri] = &document{uri: uri, version: version, text: text}
		return true
	}
	if version < doc.version {
		return false
	}
	doc.version = version
	doc.text = text
	return true
}

func (s *LSPServer) publish(ctx context.Context, conn *jsonrpc2.Conn, uri protocol.DocumentURI) error {
	s.mu.RLock()
	doc, ok := s.docs[uri]
	var text, lang string
	var version int32
	if ok {
		text, lang, version = doc.text, doc.languageID, doc.version
	}
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	name := uriPath(uri)
	if lang != "python" && !strings.HasSuffix(name, ".py") {
		return nil
	}
	diags := tools.Diagnose(filepath.Base(name), text)
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	return conn.Notify(ctx, "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     uint32(version),
		Diagnostics: diags,
	})
}

func decodeParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

func uriPath(uri protocol.DocumentURI) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}
