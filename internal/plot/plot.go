// Package plot renders compartment totals of a simulated series as line
// charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/nvandessel/macrosim/internal/aggregate"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
)

// ErrTooFewSnapshots indicates a series too short to draw a line.
var ErrTooFewSnapshots = errors.New("at least two snapshots are needed to plot")

// Default chart dimensions in pixels.
const (
	DefaultWidth  = 1024
	DefaultHeight = 512
)

// Options controls which totals are drawn and how.
type Options struct {
	Title  string
	Width  int
	Height int
	// Compartments limits the lines drawn; empty draws every compartment.
	Compartments []string
	// Population adds a line for the living population N.
	Population bool
	// Model draws a single model of each snapshot by list position;
	// negative sums every model.
	Model int
}

// Lines holds the x values (recorded iterations) and one y series per total.
type Lines struct {
	Iterations []float64
	Totals     *ordered.Map[[]float64]
}

// Collect sums the totals of each snapshot of series. Names appear in
// first-seen order with N first when requested.
func Collect(series model.ModelListSeries, opts Options) (Lines, error) {
	lines := Lines{Totals: ordered.New[[]float64]()}
	for i, list := range series {
		if len(list) == 0 {
			return Lines{}, fmt.Errorf("snapshot %d is empty", i)
		}

		var ts []aggregate.Totals
		switch {
		case opts.Model < 0:
			for _, m := range list {
				ts = append(ts, aggregate.CalcTotals(m.Group))
			}
		case opts.Model < len(list):
			ts = append(ts, aggregate.CalcTotals(list[opts.Model].Group))
		default:
			return Lines{}, fmt.Errorf("model %d out of range: snapshot %d holds %d models", opts.Model, i, len(list))
		}

		lines.Iterations = append(lines.Iterations, float64(list[0].IterationOr(i)))
		for name, v := range aggregate.SumTotals(ts).All() {
			if !wanted(name, opts) {
				continue
			}
			ys, _ := lines.Totals.Get(name)
			// Names first seen late are padded so every line spans the run.
			for len(ys) < i {
				ys = append(ys, 0)
			}
			lines.Totals.Set(name, append(ys, v))
		}
	}
	return lines, nil
}

func wanted(name string, opts Options) bool {
	if name == aggregate.PopulationKey {
		return opts.Population
	}
	return len(opts.Compartments) == 0 || slices.Contains(opts.Compartments, name)
}

// Chart builds a line chart of the totals of series.
func Chart(series model.ModelListSeries, opts Options) (*chart.Chart, error) {
	if len(series) < 2 {
		return nil, ErrTooFewSnapshots
	}
	lines, err := Collect(series, opts)
	if err != nil {
		return nil, err
	}
	if lines.Totals.Len() == 0 {
		return nil, fmt.Errorf("no compartment matches %v", opts.Compartments)
	}

	width, height := opts.Width, opts.Height
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var cs []chart.Series
	idx := 0
	for name, ys := range lines.Totals.All() {
		cs = append(cs, chart.ContinuousSeries{
			Name:    name,
			XValues: lines.Iterations,
			YValues: ys,
			Style:   chart.Style{StrokeColor: chart.GetDefaultColor(idx), StrokeWidth: 2.0},
		})
		idx++
	}

	graph := &chart.Chart{
		Title:  opts.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "iteration",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "population",
			Style: chart.Style{FontSize: 10.0},
		},
		Series: cs,
	}
	graph.Elements = []chart.Renderable{chart.Legend(graph)}
	return graph, nil
}

// Render draws the chart of series to w as PNG, or as SVG when svg is set.
func Render(w io.Writer, series model.ModelListSeries, opts Options, svg bool) error {
	graph, err := Chart(series, opts)
	if err != nil {
		return err
	}
	provider := chart.PNG
	if svg {
		provider = chart.SVG
	}
	if err := graph.Render(provider, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteFile renders the chart of series to path. A .svg extension selects
// SVG output; anything else is PNG.
func WriteFile(path string, series model.ModelListSeries, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	svg := strings.EqualFold(filepath.Ext(path), ".svg")
	if err := Render(f, series, opts, svg); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
