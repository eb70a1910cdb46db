package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/app/console"
	"github.com/lexcodex/codebuddy/framework"
)

// newApprovalsCmd prints the approval audit trail.
func newApprovalsCmd() *cobra.Command {
	var tool string
	var minRisk string
	var deniedOnly bool

	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Show the approval audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := framework.AuditQuery{Tool: tool}
			if minRisk != "" {
				risk, err := framework.ParseRiskLevel(minRisk)
				if err != nil {
					return err
				}
				filter.MinRisk = &risk
			}
			if deniedOnly {
				denied := false
				filter.Approved = &denied
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No approval records.")
				return nil
			}
			for _, r := range records {
				verdict := "approved"
				if !r.Approved {
					verdict = "denied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %-8s %s\n",
					r.Timestamp.Local().Format(time.DateTime), console.RiskLabel(r.Risk), verdict, r.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "Only records for this tool")
	cmd.Flags().StringVar(&minRisk, "min-risk", "", "Lowest risk level to show (low, medium, high, critical)")
	cmd.Flags().BoolVar(&deniedOnly, "denied", false, "Only denied requests")
	return cmd
}
