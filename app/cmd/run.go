package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/agents"
	"github.com/lexcodex/codebuddy/app/console"
)

func newRunCmd() *cobra.Command {
	var sessionID string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Process a single request and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			approver := console.NewApprover(cmd.InOrStdin(), cmd.ErrOrStderr())
			rt, err := newRuntime(ctx, sessionID, approver)
			if err != nil {
				return err
			}
			defer rt.Close()
			resp, err := rt.Agent.Process(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					SessionID string           `json:"session_id"`
					Response  *agents.Response `json:"response"`
				}{rt.Agent.SessionID, resp})
			}
			fmt.Fprintln(out, console.RenderResponse(resp, verbose))
			if resp.Outcome == agents.OutcomeToolFailure {
				return fmt.Errorf("request failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue a stored session")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the response as JSON")
	return cmd
}
