package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve macrosim tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
macrosim_simulate, macrosim_scenarios and macrosim_runs tools.

Tables requested by clients may only be written inside the project root
(--root) or ~/.macrosim/exports. Calls are rate limited and recorded in
<root>/.macrosim/audit.jsonl. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			root, err := filepath.Abs(s.root)
			if err != nil {
				return fmt.Errorf("failed to resolve project root: %w", err)
			}
			dbPath, err := s.dbPath(cmd)
			if err != nil {
				return err
			}
			var defaults tableFlags
			_, csvOpts, err := defaults.options(cmd, s.cfg.Output)
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:    "macrosim",
				Version: version,
				Root:    root,
				DBPath:  dbPath,
				Workers: s.cfg.Simulation.Workers,
				CSV:     csvOpts,
				Logger:  s.logger,
			})
			if err != nil {
				return err
			}
			return server.Run(cmd.Context())
		},
	}
}
