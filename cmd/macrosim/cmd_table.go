package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/archive"
)

func newTableCmd() *cobra.Command {
	var sinks sinkFlags
	cmd := &cobra.Command{
		Use:   "table <archive>",
		Short: "Flatten an archived series again",
		Long: `Read a series archive (written with --archive), verify its checksum and
print its table, optionally with different naming or CSV settings or to
the other sinks.

Examples:
  macrosim table ~/.macrosim/archives/simple-20260101-120000.series.gz
  macrosim table run.series.gz --concat-names " > " --quoting all
  macrosim table run.series.gz --arrow run.arrow --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			a, err := archive.Read(args[0])
			if err != nil {
				return fmt.Errorf("failed to read archive: %w", err)
			}
			series, err := a.Series()
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			s.logger.Debug("loaded archive", "path", args[0], "name", a.Name,
				"snapshots", len(series), "created", a.CreatedAt)

			name := a.Name
			if name == "" {
				name = "archive"
			}
			return emit(cmd, s, series, name, nil, &sinks, started)
		},
	}
	addSinkFlags(cmd, &sinks)
	return cmd
}
