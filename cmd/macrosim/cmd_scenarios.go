package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios [name]",
		Short: "List built-in scenarios or print one as YAML",
		Long: `Without arguments, list the scenarios shipped with macrosim. With a name,
print its YAML specification, ready to copy and edit.

Examples:
  macrosim scenarios
  macrosim scenarios complicated > town.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				names := scenario.Names()
				if jsonOut {
					return json.NewEncoder(out).Encode(map[string]any{"scenarios": names})
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			src, err := scenario.Source(args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]string{
					"name":   args[0],
					"source": string(src),
				})
			}
			_, err = out.Write(src)
			return err
		},
	}
}
