package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/app/console"
	"github.com/lexcodex/codebuddy/app/tui"
	"github.com/lexcodex/codebuddy/framework"
)

var (
	plainChat   bool
	chatSession string
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if plainChat {
				return runPlainChat(ctx, cmd)
			}
			broker := framework.NewHITLBroker(globalCfg.Safety.ApprovalTimeout)
			rt, err := newRuntime(ctx, chatSession, broker)
			if err != nil {
				return err
			}
			defer rt.Close()
			return tui.Run(ctx, console.RuntimeSession{Runtime: rt}, broker)
		},
	}
	cmd.Flags().BoolVar(&plainChat, "plain", false, "Line-oriented console instead of the full-screen UI")
	cmd.Flags().StringVar(&chatSession, "session", "", "Resume a stored session")
	return cmd
}

func runPlainChat(ctx context.Context, cmd *cobra.Command) error {
	approver := console.NewApprover(cmd.InOrStdin(), cmd.OutOrStdout())
	rt, err := newRuntime(ctx, chatSession, approver)
	if err != nil {
		return err
	}
	defer rt.Close()
	repl := &console.REPL{
		Session:  console.RuntimeSession{Runtime: rt},
		Approver: approver,
		Out:      cmd.OutOrStdout(),
	}
	return repl.Run(ctx)
}
