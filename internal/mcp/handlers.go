package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/macrosim/internal/aggregate"
	"github.com/nvandessel/macrosim/internal/columnar"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/pathutil"
	"github.com/nvandessel/macrosim/internal/ratelimit"
	"github.com/nvandessel/macrosim/internal/scenario"
	"github.com/nvandessel/macrosim/internal/simulation"
	"github.com/nvandessel/macrosim/internal/store"
	"github.com/nvandessel/macrosim/internal/table"
)

// Limits on tool arguments.
const (
	maxRuns        = 64
	defaultRows    = 20
	defaultRunList = 20
)

// ErrStoreDisabled indicates a run database request on a server started
// without one.
var ErrStoreDisabled = errors.New("run database is not configured")

// Output extensions accepted by macrosim_simulate.
var outputExtensions = []string{".csv", ".tsv", ".arrow"}

const scenarioURIPrefix = "macrosim://scenarios/"

// registerTools registers all macrosim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolSimulate,
		Description: "Run a compartmental epidemic model (given inline or as a built-in scenario) and return its table header, leading rows and final compartment totals",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolScenarios,
		Description: "List the built-in scenarios, or return the YAML source of one",
	}, s.handleScenarios)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ratelimit.ToolRuns,
		Description: "List runs stored in the run database, or return the compartment totals of one run",
	}, s.handleRuns)
}

// registerResources exposes each built-in scenario as a YAML resource.
func (s *Server) registerResources() {
	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: scenarioURIPrefix + "{name}",
		Name:        "macrosim-scenario",
		Description: "YAML source of a built-in scenario, usable as the spec argument of macrosim_simulate.",
		MIMEType:    "application/yaml",
	}, s.handleScenarioResource)
}

// handleScenarioResource returns the YAML source of a built-in scenario.
func (s *Server) handleScenarioResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	name, ok := strings.CutPrefix(uri, scenarioURIPrefix)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}

	src, err := scenario.Source(name)
	if err != nil {
		return nil, fmt.Errorf("scenario not found: %w", err)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/yaml",
				Text:     string(src),
			},
		},
	}, nil
}

// handleSimulate implements the macrosim_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolSimulate, start, retErr, sanitizeToolParams(map[string]any{
			"spec": args.Spec, "scenario": args.Scenario, "runs": args.Runs, "seed": seedValue(args.Seed),
			"concat_names": args.ConcatNames, "output": args.Output, "save": args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolSimulate); err != nil {
		return nil, SimulateOutput{}, err
	}

	runs := args.Runs
	if runs == 0 {
		runs = 1
	}
	if runs < 0 || runs > maxRuns {
		return nil, SimulateOutput{}, fmt.Errorf("runs must be between 1 and %d, got %d", maxRuns, runs)
	}

	// Resolve the output path before spending time on the run.
	var outputPath string
	if args.Output != "" {
		if err := pathutil.CheckExtension(args.Output, outputExtensions...); err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("output path rejected: %w", err)
		}
		allowedDirs, err := pathutil.DefaultOutputDirs(s.root)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to determine allowed output dirs: %w", err)
		}
		outputPath, err = pathutil.ResolveOutput(args.Output, allowedDirs)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("output path rejected: %w", err)
		}
	}

	if args.Save && s.store == nil {
		return nil, SimulateOutput{}, ErrStoreDisabled
	}

	list, err := scenario.Select([]byte(args.Spec), args.Scenario)
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	if args.Seed != nil {
		scenario.SetSeed(list, *args.Seed, true)
	}

	opts := []simulation.Option{simulation.WithLogger(s.logger)}
	var series model.ModelListSeries
	if runs == 1 {
		series, err = simulation.Simulate(ctx, list, opts...)
	} else {
		series, err = simulation.SimulateSeries(ctx, scenario.Replicate(list, runs), s.workers, opts...)
	}
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	tableOpts := table.Options{}
	if args.ConcatNames != "" {
		sep := args.ConcatNames
		tableOpts.ConcatNames = &sep
	}
	header := table.Header(series[0][0], tableOpts)
	rows := table.SeriesToTable(series, tableOpts)

	out := SimulateOutput{
		Header:    header,
		Rows:      leadingRows(rows, args.Rows),
		RowCount:  len(rows),
		Snapshots: len(series),
		Final:     finalTotals(series),
	}

	if outputPath != "" {
		if err := s.writeTable(outputPath, series, tableOpts); err != nil {
			return nil, SimulateOutput{}, err
		}
		out.OutputPath = outputPath
	}

	if args.Save {
		id, err := s.saveRuns(ctx, runName(args.Scenario, list), series, args.Seed)
		if err != nil {
			return nil, SimulateOutput{}, err
		}
		out.RunID = id
	}

	out.Message = fmt.Sprintf("%s rows from %s snapshots of %d run(s)",
		humanize.Comma(int64(out.RowCount)), humanize.Comma(int64(out.Snapshots)), runs)
	if out.OutputPath != "" {
		out.Message += fmt.Sprintf(", written to %s", out.OutputPath)
		if info, err := os.Stat(out.OutputPath); err == nil {
			out.Message += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(info.Size())))
		}
	}
	if out.RunID != "" {
		out.Message += fmt.Sprintf(", saved as %s", out.RunID)
	}
	return nil, out, nil
}

// writeTable writes series as Arrow or delimited text, by extension.
func (s *Server) writeTable(path string, series model.ModelListSeries, opts table.Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow":
		return columnar.WriteSeries(path, series, opts)
	case ".tsv":
		csvOpts := s.csv
		csvOpts.Delimiter = '\t'
		return table.SeriesToCSV(path, series, table.Options{Header: true, ConcatNames: opts.ConcatNames}, csvOpts)
	}
	return table.SeriesToCSV(path, series, table.Options{Header: true, ConcatNames: opts.ConcatNames}, s.csv)
}

// saveRuns stores every run of series. Runs of one call share a batch id;
// the returned id is the first run's, or the batch id for several runs.
func (s *Server) saveRuns(ctx context.Context, name string, series model.ModelListSeries, seed *uint64) (string, error) {
	split := simulation.SplitRuns(series)
	meta := store.RunMeta{Name: name, Seed: seed}
	if len(split) > 1 {
		meta.BatchID = store.NewBatchID()
	}

	var first string
	for _, run := range split {
		saved, err := s.store.SaveRun(ctx, meta, run)
		if err != nil {
			return "", fmt.Errorf("failed to save run: %w", err)
		}
		if first == "" {
			first = saved.ID
		}
	}
	if meta.BatchID != "" {
		return meta.BatchID, nil
	}
	return first, nil
}

// handleScenarios implements the macrosim_scenarios tool.
func (s *Server) handleScenarios(ctx context.Context, req *sdk.CallToolRequest, args ScenariosInput) (_ *sdk.CallToolResult, _ ScenariosOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolScenarios, start, retErr, sanitizeToolParams(map[string]any{
			"name": args.Name,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolScenarios); err != nil {
		return nil, ScenariosOutput{}, err
	}

	if args.Name == "" {
		return nil, ScenariosOutput{Scenarios: scenario.Names()}, nil
	}
	src, err := scenario.Source(args.Name)
	if err != nil {
		return nil, ScenariosOutput{}, err
	}
	return nil, ScenariosOutput{Source: string(src)}, nil
}

// handleRuns implements the macrosim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ratelimit.ToolRuns, start, retErr, sanitizeToolParams(map[string]any{
			"run_id": args.RunID, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, ratelimit.ToolRuns); err != nil {
		return nil, RunsOutput{}, err
	}
	if s.store == nil {
		return nil, RunsOutput{}, ErrStoreDisabled
	}

	if args.RunID != "" {
		run, err := s.store.GetRun(ctx, args.RunID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		points, err := s.store.Totals(ctx, run.ID)
		if err != nil {
			return nil, RunsOutput{}, err
		}
		out := RunsOutput{
			Runs:   []RunSummary{summarize(run)},
			Totals: make([]RunPoint, len(points)),
		}
		for i, p := range points {
			out.Totals[i] = RunPoint(p)
		}
		return nil, out, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunList
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, err
	}
	out := RunsOutput{Runs: make([]RunSummary, len(runs))}
	for i, r := range runs {
		out.Runs[i] = summarize(r)
	}
	return nil, out, nil
}

func summarize(r store.Run) RunSummary {
	return RunSummary(r)
}

// finalTotals sums each model of the last snapshot of every run.
func finalTotals(series model.ModelListSeries) []ModelTotals {
	var out []ModelTotals
	for _, run := range simulation.SplitRuns(series) {
		last := run[len(run)-1]
		for i, m := range last {
			mt := ModelTotals{
				Ident:     m.Ident,
				Model:     i,
				Name:      m.Label(),
				Iteration: m.IterationOr(0),
			}
			for name, v := range aggregate.CalcTotals(m.Group).All() {
				mt.Totals = append(mt.Totals, CompartmentTotal{Name: name, Value: v})
			}
			out = append(out, mt)
		}
	}
	return out
}

// leadingRows converts up to n table rows for inline output. n == 0 means
// defaultRows and a negative n returns none.
func leadingRows(rows []table.Row, n int) [][]any {
	if n == 0 {
		n = defaultRows
	}
	if n < 0 {
		return nil
	}
	n = min(n, len(rows))
	out := make([][]any, n)
	for i := range n {
		out[i] = rows[i]
	}
	return out
}

func runName(scenarioName string, list model.ModelList) string {
	if scenarioName != "" {
		return scenarioName
	}
	return list[0].Label()
}

func seedValue(seed *uint64) any {
	if seed == nil {
		return nil
	}
	return *seed
}
