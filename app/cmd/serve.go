package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var stdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP, or JSON-RPC on stdio for editors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			broker := framework.NewHITLBroker(globalCfg.Safety.ApprovalTimeout)
			rt, err := newRuntime(ctx, "", broker)
			if err != nil {
				return err
			}
			defer rt.Close()
			if stdio {
				lsp := server.NewLSPServer(rt, broker, rt.Logger)
				return ignoreCancel(lsp.Serve(ctx, stdioConn{Reader: cmd.InOrStdin(), Writer: cmd.OutOrStdout()}))
			}
			api := &server.APIServer{
				Backend: rt,
				Broker:  broker,
				Logger:  rt.Logger,
				Timeout: requestTimeout(),
			}
			return ignoreCancel(api.ServeContext(ctx, addr))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Speak JSON-RPC on stdin/stdout")
	return cmd
}

// requestTimeout covers one approval wait plus every model call a full
// reasoning loop can make.
func requestTimeout() time.Duration {
	calls := time.Duration(globalCfg.Agent.MaxIterations + 2)
	return globalCfg.Safety.ApprovalTimeout + calls*globalCfg.LLM.Timeout
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// stdioConn joins stdin and stdout into one stream.
type stdioConn struct {
	io.Reader
	io.Writer
}

func (stdioConn) Close() error { return nil }
