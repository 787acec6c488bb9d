package simulation

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/macrosim/internal/model"
)

// SimulateSeries runs each list independently on a pool of at most workers
// goroutines (runtime.NumCPU when workers < 1). Run i is stamped with
// ident i. Results are concatenated in submission order once every run has
// finished; the first failure in submission order is returned.
//
// Runs are not cancelled when a sibling fails. ctx is still honoured by each
// run between iterations.
func SimulateSeries(ctx context.Context, lists []model.ModelList, workers int, opts ...Option) (model.ModelListSeries, error) {
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	results := make([]model.ModelListSeries, len(lists))
	errs := make([]error, len(lists))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, list := range lists {
		input := list.Clone()
		runOpts := append(slices.Clone(opts), WithIdent(i))
		g.Go(func() error {
			series, err := Simulate(ctx, input, runOpts...)
			if err != nil {
				errs[i] = fmt.Errorf("run %d: %w", i, err)
				return nil
			}
			results[i] = series
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var out model.ModelListSeries
	for _, series := range results {
		out = append(out, series...)
	}
	return out, nil
}

// SplitRuns cuts a concatenated series back into one series per run. Runs
// are told apart by the ident stamped on their first model; an unstamped
// series comes back whole.
func SplitRuns(series model.ModelListSeries) []model.ModelListSeries {
	var out []model.ModelListSeries
	start := 0
	for i := 1; i <= len(series); i++ {
		if i < len(series) && sameRun(series[i-1], series[i]) {
			continue
		}
		out = append(out, series[start:i])
		start = i
	}
	return out
}

func sameRun(a, b model.ModelList) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	ia, ib := a[0].Ident, b[0].Ident
	if ia == nil || ib == nil {
		return ia == nil && ib == nil
	}
	return *ia == *ib
}
