package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/archive"
	"github.com/nvandessel/macrosim/internal/columnar"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/plot"
	"github.com/nvandessel/macrosim/internal/simulation"
	"github.com/nvandessel/macrosim/internal/store"
	"github.com/nvandessel/macrosim/internal/table"
)

// autoArchive is the --archive value used when the flag has no argument.
const autoArchive = "auto"

// sinkFlags select where a finished series goes besides the CSV table.
type sinkFlags struct {
	tableFlags
	archive string
	db      bool
	plot    string
}

func addSinkFlags(cmd *cobra.Command, f *sinkFlags) {
	addTableFlags(cmd, &f.tableFlags)
	cmd.Flags().StringVar(&f.archive, "archive", "", "Archive the series to this file (no value: timestamped file in the archive directory)")
	cmd.Flags().Lookup("archive").NoOptDefVal = autoArchive
	cmd.Flags().BoolVar(&f.db, "db", false, "Save the run in the SQLite run database")
	cmd.Flags().String("db-path", "", "Run database file (default from config or ~/.macrosim/runs.db)")
	cmd.Flags().StringVar(&f.plot, "plot", "", "Also plot the compartment totals to this .png or .svg file")
}

// runSummary is the --json report of a finished command.
type runSummary struct {
	Name      string   `json:"name"`
	Runs      int      `json:"runs"`
	Snapshots int      `json:"snapshots"`
	Rows      int      `json:"rows"`
	Output    string   `json:"output,omitempty"`
	Arrow     string   `json:"arrow,omitempty"`
	Archive   string   `json:"archive,omitempty"`
	Plot      string   `json:"plot,omitempty"`
	RunIDs    []string `json:"run_ids,omitempty"`
	BatchID   string   `json:"batch_id,omitempty"`
	Elapsed   string   `json:"elapsed"`
}

// emit writes series to every requested sink. CSV goes to stdout unless
// --output names a file or --json asks for the summary instead.
func emit(cmd *cobra.Command, s *session, series model.ModelListSeries, name string, seed *uint64, f *sinkFlags, started time.Time) error {
	if len(series) == 0 {
		return fmt.Errorf("nothing to write: the run recorded no snapshots")
	}
	jsonOut, _ := cmd.Flags().GetBool("json")

	opts, csvOpts, err := f.options(cmd, s.cfg.Output)
	if err != nil {
		return err
	}
	runs := simulation.SplitRuns(series)
	summary := runSummary{
		Name:      name,
		Runs:      len(runs),
		Snapshots: len(series),
	}

	rows := table.SeriesToTable(series, opts)
	summary.Rows = len(rows)
	if opts.Header {
		summary.Rows--
	}
	switch {
	case f.output != "" && f.output != "-":
		if err := table.SeriesToCSV(f.output, series, opts, csvOpts); err != nil {
			return err
		}
		summary.Output = f.output
	case !jsonOut:
		if err := table.WriteCSV(cmd.OutOrStdout(), rows, csvOpts); err != nil {
			return fmt.Errorf("failed to write table: %w", err)
		}
	}

	if f.arrow != "" {
		if err := columnar.WriteSeries(f.arrow, series, opts); err != nil {
			return err
		}
		summary.Arrow = f.arrow
	}

	if f.archive != "" {
		path, err := s.writeArchive(f.archive, name, series)
		if err != nil {
			return err
		}
		summary.Archive = path
	}

	// Runs of a series share iterations, so only the first is drawn.
	if f.plot != "" {
		if err := plot.WriteFile(f.plot, runs[0], plot.Options{Title: name, Model: -1, Population: true}); err != nil {
			return err
		}
		summary.Plot = f.plot
	}

	if f.db || s.cfg.Store.Persist {
		ids, batch, err := s.saveRuns(cmd, name, seed, runs)
		if err != nil {
			return err
		}
		summary.RunIDs, summary.BatchID = ids, batch
	}

	summary.Elapsed = time.Since(started).Round(time.Millisecond).String()
	if jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
	}

	// Keep stdout clean when it carries the table.
	w := cmd.OutOrStdout()
	if summary.Output == "" {
		w = cmd.ErrOrStderr()
	}
	printSummary(w, summary)
	return nil
}

func (s *session) writeArchive(target, name string, series model.ModelListSeries) (string, error) {
	path := target
	var dir string
	if target == autoArchive {
		var err error
		if dir, err = s.archiveDir(); err != nil {
			return "", err
		}
		path = archive.GeneratePath(dir, name)
	}
	if _, err := archive.Save(path, name, series); err != nil {
		return "", err
	}

	// Rotation only applies to the managed directory.
	if dir != "" && s.cfg.Output.ArchiveKeep > 0 {
		deleted, err := archive.Rotate(dir, s.cfg.Output.ArchiveKeep)
		if err != nil {
			s.logger.Warn("archive rotation failed", "dir", dir, "error", err)
		}
		for _, p := range deleted {
			s.logger.Debug("removed old archive", "path", p)
		}
	}
	return path, nil
}

func (s *session) saveRuns(cmd *cobra.Command, name string, seed *uint64, runs []model.ModelListSeries) ([]string, string, error) {
	db, err := s.openStore(cmd)
	if err != nil {
		return nil, "", err
	}
	defer db.Close()

	meta := store.RunMeta{Name: name, Seed: seed}
	if len(runs) > 1 {
		meta.BatchID = store.NewBatchID()
	}
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		saved, err := db.SaveRun(cmd.Context(), meta, run)
		if err != nil {
			return ids, meta.BatchID, fmt.Errorf("failed to save run: %w", err)
		}
		ids = append(ids, saved.ID)
	}
	s.logger.Info("saved runs", "count", len(ids), "db", db.Path())
	return ids, meta.BatchID, nil
}

func printSummary(w io.Writer, s runSummary) {
	fmt.Fprintf(w, "%s: %d run(s), %s snapshots, %s rows in %s\n",
		s.Name, s.Runs, humanize.Comma(int64(s.Snapshots)), humanize.Comma(int64(s.Rows)), s.Elapsed)
	for _, file := range []struct{ label, path string }{
		{"table", s.Output},
		{"arrow", s.Arrow},
		{"archive", s.Archive},
		{"plot", s.Plot},
	} {
		if file.path == "" {
			continue
		}
		size := ""
		if info, err := os.Stat(file.path); err == nil {
			size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
		}
		fmt.Fprintf(w, "  %-8s %s%s\n", file.label, file.path, size)
	}
	if s.BatchID != "" {
		fmt.Fprintf(w, "  batch    %s\n", s.BatchID)
	}
	for _, id := range s.RunIDs {
		fmt.Fprintf(w, "  run      %s\n", id)
	}
}
