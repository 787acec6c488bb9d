package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/archive"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/plot"
	"github.com/nvandessel/macrosim/internal/simulation"
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [spec-file|archive]",
		Short: "Chart compartment totals over time",
		Long: `Plot the population-wide compartment totals of every recorded snapshot.
The input is a series archive (` + archive.Extension + `), a specification file to run,
or a built-in scenario. The output format follows the file extension:
.svg for SVG, anything else for PNG.

Examples:
  macrosim plot --scenario simple -o simple.png
  macrosim plot model.yaml --compartments I,R --population -o chart.svg
  macrosim plot run.series.gz --model 0 -o first-model.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var (
				series model.ModelListSeries
				name   string
			)
			if len(args) == 1 && strings.HasSuffix(args[0], archive.Extension) {
				a, err := archive.Read(args[0])
				if err != nil {
					return fmt.Errorf("failed to read archive: %w", err)
				}
				if series, err = a.Series(); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				name = a.Name
			} else {
				list, n, err := loadModels(cmd, args, s.cfg)
				if err != nil {
					return err
				}
				ctx, cancel := signalContext(cmd.Context())
				defer cancel()
				if series, err = simulation.Simulate(ctx, list, s.simOptions()...); err != nil {
					return fmt.Errorf("simulation failed: %w", err)
				}
				name = n
			}

			output, _ := cmd.Flags().GetString("output")
			var opts plot.Options
			opts.Title, _ = cmd.Flags().GetString("title")
			if opts.Title == "" {
				opts.Title = name
			}
			opts.Width, _ = cmd.Flags().GetInt("width")
			opts.Height, _ = cmd.Flags().GetInt("height")
			opts.Compartments, _ = cmd.Flags().GetStringSlice("compartments")
			opts.Population, _ = cmd.Flags().GetBool("population")
			opts.Model, _ = cmd.Flags().GetInt("model")

			if err := plot.WriteFile(output, series, opts); err != nil {
				return err
			}

			var size int64
			if info, err := os.Stat(output); err == nil {
				size = info.Size()
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"output":     output,
					"snapshots":  len(series),
					"size_bytes": size,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plotted %d snapshots to %s (%s)\n",
				len(series), output, humanize.Bytes(uint64(size)))
			return nil
		},
	}
	addModelFlags(cmd)
	cmd.Flags().StringP("output", "o", "chart.png", "Chart file (.png or .svg)")
	cmd.Flags().String("title", "", "Chart title (default: scenario or file name)")
	cmd.Flags().Int("width", plot.DefaultWidth, "Chart width in pixels")
	cmd.Flags().Int("height", plot.DefaultHeight, "Chart height in pixels")
	cmd.Flags().StringSlice("compartments", nil, "Only draw these compartments (default: all)")
	cmd.Flags().Bool("population", false, "Add a line for the living population N")
	cmd.Flags().Int("model", -1, "Draw one model by list position (default: sum of all models)")
	return cmd
}
