package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/nvandessel/macrosim/internal/config"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/scenario"
	"github.com/nvandessel/macrosim/internal/table"
)

// addModelFlags registers the flags that pick and seed the models to run.
func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("scenario", "", "Run a built-in scenario instead of a specification file")
	cmd.Flags().Uint64("seed", 0, "Noise seed for every model, replacing seeds in the specification")
}

// loadModels reads the model list named by args or --scenario and applies
// the seed flag or the configured default seed. It also returns a name for
// the run: the scenario name or the file name without extension.
func loadModels(cmd *cobra.Command, args []string, cfg *config.MacrosimConfig) (model.ModelList, string, error) {
	scenarioName, _ := cmd.Flags().GetString("scenario")

	var (
		list model.ModelList
		name string
		err  error
	)
	switch {
	case len(args) > 0 && scenarioName != "":
		return nil, "", scenario.ErrAmbiguousSource
	case len(args) > 0 && args[0] == "-":
		var data []byte
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("failed to read specification from stdin: %w", err)
		}
		list, err = scenario.Decode(data)
		name = "stdin"
	case len(args) > 0:
		list, err = scenario.Load(args[0])
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	default:
		list, err = scenario.Select(nil, scenarioName)
		name = scenarioName
	}
	if err != nil {
		return nil, "", err
	}

	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetUint64("seed")
		scenario.SetSeed(list, seed, true)
	} else if cfg.Simulation.Seed != nil {
		scenario.SetSeed(list, *cfg.Simulation.Seed, false)
	}
	return list, name, nil
}

// seedOf returns the root seed of the first model, if any.
func seedOf(list model.ModelList) *uint64 {
	if len(list) == 0 || list[0].Group.Parameters == nil {
		return nil
	}
	return list[0].Group.Parameters.Seed
}

// tableFlags are the flattening and text export flags.
type tableFlags struct {
	output      string
	arrow       string
	concatNames string
	noHeader    bool
	delimiter   string
	quoting     string
}

func addTableFlags(cmd *cobra.Command, f *tableFlags) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write CSV to this file instead of stdout")
	cmd.Flags().StringVar(&f.arrow, "arrow", "", "Also write the table as an Arrow IPC file")
	cmd.Flags().StringVar(&f.concatNames, "concat-names", "", "Join group names into one name column with this separator")
	cmd.Flags().BoolVar(&f.noHeader, "no-header", false, "Omit the header row")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV field delimiter (default from config, \\t for tab)")
	cmd.Flags().StringVar(&f.quoting, "quoting", "", "CSV quoting: minimal, all, nonnumeric or none (default from config)")
}

// options merges the flags over the output configuration.
func (f *tableFlags) options(cmd *cobra.Command, out config.OutputConfig) (table.Options, table.CSVOptions, error) {
	opts := table.Options{Header: !f.noHeader}
	switch {
	case cmd.Flags().Changed("concat-names"):
		sep := f.concatNames
		opts.ConcatNames = &sep
	case out.ConcatNames != "":
		sep := out.ConcatNames
		opts.ConcatNames = &sep
	}

	delimiter := out.Delimiter
	if f.delimiter != "" {
		delimiter = f.delimiter
	}
	if delimiter == `\t` {
		delimiter = "\t"
	}
	if utf8.RuneCountInString(delimiter) != 1 {
		return opts, table.CSVOptions{}, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}
	d, _ := utf8.DecodeRuneInString(delimiter)

	quotingName := out.Quoting
	if f.quoting != "" {
		quotingName = f.quoting
	}
	quoting, err := table.ParseQuoting(quotingName)
	if err != nil {
		return opts, table.CSVOptions{}, err
	}

	csvOpts := table.CSVOptions{Delimiter: d, Quoting: quoting}
	if quoting == table.QuoteNone {
		csvOpts.Escape = '\\'
	}
	return opts, csvOpts, nil
}
