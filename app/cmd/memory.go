package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/persistence"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect or clear stored conversations",
	}
	cmd.AddCommand(newMemorySessionsCmd(), newMemoryShowCmd(), newMemoryClearCmd())
	return cmd
}

func openStore() (*persistence.SQLiteStore, error) {
	return persistence.OpenSQLiteStore(globalCfg.Memory.DBPath)
}

func newMemorySessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			sessions, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored sessions.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s · turns=%d · ok=%d · last=%s\n",
					s.SessionID, s.Turns, s.Successful, s.LastActive.Local().Format(time.RFC822))
			}
			return nil
		},
	}
}

func newMemoryShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show [session]",
		Short: "Print the recent turns of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			turns, err := store.RecentTurns(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(turns) == 0 {
				return fmt.Errorf("session %s has no stored turns", args[0])
			}
			out := cmd.OutOrStdout()
			for _, turn := range turns {
				status := "ok"
				if !turn.Success {
					status = "failed"
				}
				fmt.Fprintf(out, "[%s] %s %s\n", turn.Timestamp.Local().Format(time.Kitchen), status, turn.UserInput)
				for _, action := range turn.Actions {
					fmt.Fprintf(out, "    %s\n", action)
				}
				if turn.Lessons != "" {
					fmt.Fprintf(out, "    lesson: %s\n", turn.Lessons)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of turns to show")
	return cmd
}

func newMemoryClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [session]",
		Short: "Delete a session's turns and working memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.ClearSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s cleared\n", args[0])
			return nil
		},
	}
}
