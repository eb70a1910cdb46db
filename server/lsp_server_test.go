package server

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/framework"
)

type lspClient struct {
	conn          *jsonrpc2.Conn
	diagnostics   chan protocol.PublishDiagnosticsParams
	approvals     chan framework.ApprovalRequest
	serverStopped chan error
}

func startLSP(t *testing.T) (*lspClient, *APIServer) {
	t.Helper()
	api, _ := newTestAPI(t)
	srv := NewLSPServer(api.Backend, api.Broker, zap.NewNop())
	serverSide, clientSide := net.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	client := &lspClient{
		diagnostics:   make(chan protocol.PublishDiagnosticsParams, 8),
		approvals:     make(chan framework.ApprovalRequest, 8),
		serverStopped: make(chan error, 1),
	}
	go func() {
		client.serverStopped <- srv.Serve(ctx, serverSide)
	}()
	handler := jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		switch req.Method {
		case "textDocument/publishDiagnostics":
			var params protocol.PublishDiagnosticsParams
			if err := json.Unmarshal(*req.Params, &params); err == nil {
				client.diagnostics <- params
			}
		case MethodApprovalRequired:
			var params framework.ApprovalRequest
			if err := json.Unmarshal(*req.Params, &params); err == nil {
				client.approvals <- params
			}
		}
		return nil, nil
	})
	client.conn = jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), handler)
	t.Cleanup(func() {
		_ = client.conn.Close()
		cancel()
		<-client.serverStopped
	})
	return client, api
}

func (c *lspClient) nextDiagnostics(t *testing.T) protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case d := <-c.diagnostics:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostics published")
		return protocol.PublishDiagnosticsParams{}
	}
}

func TestLSPInitializeAdvertisesCommand(t *testing.T) {
	client, _ := startLSP(t)
	var result protocol.InitializeResult
	require.NoError(t, client.conn.Call(context.Background(), "initialize", &protocol.InitializeParams{}, &result))
	require.NotNil(t, result.Capabilities.ExecuteCommandProvider)
	assert.Equal(t, []string{CommandProcess}, result.Capabilities.ExecuteCommandProvider.Commands)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "codebuddy", result.ServerInfo.Name)
}

func TestLSPPublishesDiagnosticsForPythonBuffers(t *testing.T) {
	client, _ := startLSP(t)
	ctx := context.Background()
	uri := protocol.DocumentURI("file:///tmp/app.py")

	require.NoError(t, client.conn.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "python", Version: 1, Text: "x = eval(input())\n"},
	}))
	diags := client.nextDiagnostics(t)
	assert.Equal(t, uri, diags.URI)
	var codes []interface{}
	for _, d := range diags.Diagnostics {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, "S307")

	require.NoError(t, client.conn.Notify(ctx, "textDocument/didChange", &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "x = 1\n"}},
	}))
	diags = client.nextDiagnostics(t)
	assert.Empty(t, diags.Diagnostics)
	assert.Equal(t, uint32(2), diags.Version)
}

func TestLSPProcessAndHistory(t *testing.T) {
	client, api := startLSP(t)
	ctx := context.Background()

	var out ProcessResponse
	require.NoError(t, client.conn.Call(ctx, MethodProcess, ProcessParams{Input: `write_file(filepath="a.py", content="x = 1")`}, &out))
	require.NotNil(t, out.Response)
	assert.Equal(t, agents.OutcomeSuccess, out.Response.Outcome)
	assert.NotEmpty(t, out.SessionID)

	var resp ProcessResponse
	require.NoError(t, client.conn.Call(ctx, "workspace/executeCommand", &protocol.ExecuteCommandParams{
		Command:   CommandProcess,
		Arguments: []interface{}{"hi"},
	}, &resp))
	assert.Equal(t, out.SessionID, resp.SessionID)
	assert.Equal(t, agents.OutcomeConversation, resp.Response.Outcome)

	var turns []framework.ConversationTurn
	require.NoError(t, client.conn.Call(ctx, MethodHistory, HistoryParams{}, &turns))
	assert.Len(t, turns, 2)

	var infos []ToolInfo
	require.NoError(t, client.conn.Call(ctx, MethodTools, nil, &infos))
	assert.Len(t, infos, len(api.Backend.ToolList()))
}

func TestLSPApprovalThroughEditor(t *testing.T) {
	client, api := startLSP(t)
	ctx := context.Background()
	agent, err := api.Backend.AgentFor(ctx, "")
	require.NoError(t, err)

	var out ProcessResponse
	done := make(chan error, 1)
	go func() {
		done <- client.conn.Call(ctx, MethodProcess, ProcessParams{SessionID: agent.SessionID, Input: `run_command(command="rm -rf /data")`}, &out)
	}()

	var req framework.ApprovalRequest
	select {
	case req = <-client.approvals:
	case <-time.After(5 * time.Second):
		t.Fatal("approval was not forwarded")
	}
	assert.Equal(t, framework.RiskCritical, req.Risk)
	assert.Equal(t, framework.DefaultConfirmationPhrase, req.Phrase)

	var ack interface{}
	require.NoError(t, client.conn.Call(ctx, MethodApprove, framework.ApprovalDecision{RequestID: req.ID, Approved: true, Confirmation: "yes"}, &ack))
	require.NoError(t, <-done)
	require.NotNil(t, out.Response)
	assert.Equal(t, agents.OutcomeCancelled, out.Response.Outcome)
}

func TestURIPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Equal(t, file, uriPath(protocol.DocumentURI("file://"+filepath.ToSlash(file))))
	assert.Equal(t, "untitled:1", uriPath("untitled:1"))
}
