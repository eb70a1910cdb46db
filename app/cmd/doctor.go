package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/app/runtime"
)

func newDoctorCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the model endpoint and required binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := runtime.CheckEnvironment(cmd.Context(), workspace, globalCfg)
			report.ConfigPath = cfgFile
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "workspace: %s\nconfig:    %s\n", report.Workspace, report.ConfigPath)
				model := report.Model
				fmt.Fprintf(out, "%s model %s/%s", mark(model.Healthy), model.Provider, model.Model)
				if model.Endpoint != "" {
					fmt.Fprintf(out, " at %s", model.Endpoint)
				}
				if model.Error != "" {
					fmt.Fprintf(out, ": %s", model.Error)
				}
				fmt.Fprintln(out)
				for _, bin := range report.Binaries {
					if bin.Error != "" {
						fmt.Fprintf(out, "%s %s: %s\n", mark(false), bin.Name, bin.Error)
						continue
					}
					fmt.Fprintf(out, "%s %s %s\n", mark(true), bin.Name, bin.Version)
				}
			}
			if !report.Healthy() {
				return errors.New("environment check failed; the assistant will run with reduced capabilities")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
