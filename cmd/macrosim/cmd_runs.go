package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/store"
	"github.com/nvandessel/macrosim/internal/table"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs saved in the run database",
		Long: `List, inspect and delete runs saved with --db (or store.persist).

Run ids may be shortened to any unique prefix.

Examples:
  macrosim runs
  macrosim runs --limit 5 --json
  macrosim runs show 3f2a
  macrosim runs delete 3f2a
  macrosim runs reset --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			s, db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer db.Close()

			runs, err := db.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"runs":     runs,
					"count":    len(runs),
					"database": db.Path(),
				})
			}
			if len(runs) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No runs in %s\n", db.Path())
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tMODELS\tSNAPSHOTS\tSEED\tBATCH\tCREATED")
			for _, r := range runs {
				seed := "-"
				if r.Seed != nil {
					seed = fmt.Sprintf("%d", *r.Seed)
				}
				batch := "-"
				if r.BatchID != "" {
					batch = shortID(r.BatchID)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					shortID(r.ID), r.Name, r.Models, r.Snapshots, seed, batch, humanize.Time(r.CreatedAt))
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().String("db-path", "", "Run database file (default from config or ~/.macrosim/runs.db)")
	cmd.Flags().Int("limit", 20, "Maximum runs to list (0 for all)")

	cmd.AddCommand(newRunsShowCmd(), newRunsDeleteCmd(), newRunsResetCmd())
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the compartment totals of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			points, err := db.Totals(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"run":    run,
					"totals": points,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s), %d model(s), %d snapshots, created %s\n\n",
				run.ID, run.Name, run.Models, run.Snapshots, humanize.Time(run.CreatedAt))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "SNAPSHOT\tMODEL\tITER\tCOMPARTMENT\tTOTAL\t")
			for _, p := range points {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t\n",
					p.Snapshot, p.Model, p.Iteration, p.Compartment, table.FormatCell(p.Value))
			}
			return tw.Flush()
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run and its values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			s, db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer db.Close()

			run, err := db.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := db.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status": "deleted",
					"id":     run.ID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
			return nil
		},
	}
}

func newRunsResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete every run without --yes")
			}

			s, db, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			defer db.Close()

			if err := db.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset run store: %w", err)
			}
			s.logger.Info("run store reset", "db", db.Path())

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
					"status":   "reset",
					"database": db.Path(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted every run in %s\n", db.Path())
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting every run")
	return cmd
}

func openRunStore(cmd *cobra.Command) (*session, *store.RunStore, error) {
	s, err := newSession(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := s.openStore(cmd)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// shortID abbreviates a uuid for tables.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
