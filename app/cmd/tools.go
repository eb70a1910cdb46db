package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/codebuddy/framework"
	"github.com/lexcodex/codebuddy/tools"
)

// newToolsCmd lists the registered tools grouped by category.
func newToolsCmd() *cobra.Command {
	var verboseParams bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := tools.NewWorkspace(workspace)
			if err != nil {
				return err
			}
			registry, err := tools.NewRegistry(ws, nil, tools.Options{TrashDir: globalCfg.Tools.TrashDir})
			if err != nil {
				return err
			}
			byCategory := map[string][]framework.Tool{}
			var categories []string
			for _, tool := range registry.All() {
				if _, ok := byCategory[tool.Category()]; !ok {
					categories = append(categories, tool.Category())
				}
				byCategory[tool.Category()] = append(byCategory[tool.Category()], tool)
			}
			sort.Strings(categories)
			out := cmd.OutOrStdout()
			for _, category := range categories {
				fmt.Fprintf(out, "%s:\n", category)
				for _, tool := range byCategory[category] {
					fmt.Fprintf(out, "  %-18s %s\n", tool.Name(), tool.Description())
					if !verboseParams {
						continue
					}
					for _, p := range tool.Parameters() {
						req := ""
						if p.Required {
							req = ", required"
						}
						fmt.Fprintf(out, "      %s (%s%s) %s\n", p.Name, p.Type, req, strings.TrimSpace(p.Description))
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verboseParams, "params", false, "Show tool parameters")
	return cmd
}
