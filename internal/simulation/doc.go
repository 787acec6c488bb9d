// Package simulation steps compartmental models forward in discrete time.
//
// Simulate drives one ModelList through a fixed state machine: parameters
// are resolved once per model, an optional first snapshot is recorded, then
// every iteration runs the before hooks, totals, transition dispatch and
// after hooks of each model in list order, recording a deep copy of the list
// every record_frequency iterations, and finally an optional last snapshot.
//
// SimulateSeries fans independent lists out over a bounded worker pool and
// joins the results in submission order, each record stamped with its run
// identifier.
//
// Usage:
//
//	series, err := simulation.Simulate(ctx, model.ModelList{m},
//	    simulation.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	rows := table.SeriesToTable(series, table.Options{Header: true})
package simulation
