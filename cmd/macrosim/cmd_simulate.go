package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/scenario"
	"github.com/nvandessel/macrosim/internal/simulation"
)

func newSimulateCmd() *cobra.Command {
	var sinks sinkFlags
	cmd := &cobra.Command{
		Use:   "simulate [spec-file]",
		Short: "Run a model and print its table as CSV",
		Long: `Run the models in a YAML or JSON specification (or a built-in scenario)
and print one CSV row per leaf group per recorded snapshot.

Use "-" as the file name to read the specification from stdin.

Examples:
  macrosim simulate model.yaml
  macrosim simulate --scenario complicated --concat-names /
  macrosim simulate model.yaml -o out.csv --arrow out.arrow --db
  macrosim simulate model.yaml --seed 7 --archive --plot chart.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			list, name, err := loadModels(cmd, args, s.cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			series, err := simulation.Simulate(ctx, list, s.simOptions()...)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			return emit(cmd, s, series, name, seedOf(list), &sinks, started)
		},
	}
	addModelFlags(cmd)
	addSinkFlags(cmd, &sinks)
	return cmd
}

func newSeriesCmd() *cobra.Command {
	var sinks sinkFlags
	cmd := &cobra.Command{
		Use:   "series [spec-file]",
		Short: "Run a model many times in parallel",
		Long: `Run independent copies of a model on a pool of workers. Each run is
stamped with its index in an "ident" column; with noise and a seed every
run draws its own reproducible stream.

Examples:
  macrosim series model.yaml --runs 100 --seed 1 -o runs.csv
  macrosim series --scenario south-africa --runs 8 --workers 4 --db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, _ := cmd.Flags().GetInt("runs")
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1, got %d", runs)
			}
			workers := s.cfg.Simulation.Workers
			if cmd.Flags().Changed("workers") {
				workers, _ = cmd.Flags().GetInt("workers")
			}

			list, name, err := loadModels(cmd, args, s.cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s.logger.Info("starting series", "name", name, "runs", runs, "workers", workers)
			series, err := simulation.SimulateSeries(ctx, scenario.Replicate(list, runs), workers, s.simOptions()...)
			if err != nil {
				return fmt.Errorf("series failed: %w", err)
			}
			return emit(cmd, s, series, name, seedOf(list), &sinks, started)
		},
	}
	addModelFlags(cmd)
	addSinkFlags(cmd, &sinks)
	cmd.Flags().Int("runs", 10, "Number of independent runs")
	cmd.Flags().Int("workers", 0, "Parallel workers (default from config; 0 uses every CPU)")
	return cmd
}
