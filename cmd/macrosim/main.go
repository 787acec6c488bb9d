package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "macrosim",
		Short: "Macro compartmental epidemic simulator",
		Long: `macrosim runs compartmental (SIR-style) infectious disease models.

A model is a tree of named groups whose leaves hold compartment populations.
Transition coefficients and parameters are inherited down the tree and can
be overridden per branch. Runs produce snapshots that flatten into tables
for CSV or Arrow export, and can be archived, stored in SQLite or plotted.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level (info, debug, trace)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newSeriesCmd(),
		newTableCmd(),
		newPlotCmd(),
		newRunsCmd(),
		newScenariosCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}
