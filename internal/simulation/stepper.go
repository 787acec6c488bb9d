package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/macrosim/internal/aggregate"
	"github.com/nvandessel/macrosim/internal/logging"
	"github.com/nvandessel/macrosim/internal/model"
)

// ErrEmptyModelList indicates Simulate was given no models.
var ErrEmptyModelList = errors.New("model list is empty")

// RunError wraps a failure raised while stepping a model.
type RunError struct {
	Model     int // index in the model list
	Iteration int // iteration being computed, 0 during initialization
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("model %d, iteration %d: %v", e.Model, e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// stepper holds the working copy of one run.
type stepper struct {
	opts    options
	models  model.ModelList
	sources []Source
	series  model.ModelListSeries
}

// Simulate runs list and returns its recorded time series. The input is
// never mutated: the run works on a deep copy and every snapshot is an
// independent copy of the working state at that iteration.
func Simulate(ctx context.Context, list model.ModelList, opts ...Option) (model.ModelListSeries, error) {
	if len(list) == 0 {
		return nil, ErrEmptyModelList
	}

	s := &stepper{opts: buildOptions(opts)}
	start := time.Now()
	s.trace("run_started", map[string]any{"models": len(list)})

	if err := s.initialize(list); err != nil {
		s.fail(err)
		return nil, err
	}
	s.recordFirst()
	if err := s.iterate(ctx); err != nil {
		s.fail(err)
		return nil, err
	}
	s.recordLast()

	s.opts.logger.Info("simulation finished",
		"ident", s.identAttr(),
		"models", len(s.models),
		"snapshots", len(s.series),
		"elapsed", time.Since(start))
	s.trace("run_finished", map[string]any{"snapshots": len(s.series)})
	return s.series, nil
}

// initialize validates and copies each model and resolves its parameters.
func (s *stepper) initialize(list model.ModelList) error {
	s.models = make(model.ModelList, len(list))
	s.sources = make([]Source, len(list))

	ident := -1
	if s.opts.ident != nil {
		ident = *s.opts.ident
	}

	for i, in := range list {
		if in == nil || in.Group == nil {
			return &RunError{Model: i, Err: fmt.Errorf("%w: model has no root group", model.ErrMalformedGroup)}
		}
		if err := model.Validate(in.Group); err != nil {
			return &RunError{Model: i, Err: err}
		}

		m := in.Clone()
		base := m.Parameters
		if base == nil {
			base = model.DefaultParameters()
		}
		m.Parameters = model.Resolve(base, m.Group.Parameters)
		if err := m.Parameters.Validate(); err != nil {
			return &RunError{Model: i, Err: err}
		}

		if s.opts.ident != nil {
			m.SetIdent(*s.opts.ident)
		}
		m.SetIteration(m.Parameters.From)

		s.models[i] = m
		s.sources[i] = s.opts.sources(m.Parameters.Seed, ident, i)
	}
	return nil
}

// recordFirst snapshots the initial state stamped iteration 0. The working
// models keep their from iteration so hooks see the iteration being computed.
func (s *stepper) recordFirst() {
	var snapshot model.ModelList
	for _, m := range s.models {
		if !m.Parameters.RecordFirst {
			continue
		}
		c := m.Clone()
		c.SetIteration(0)
		snapshot = append(snapshot, c)
	}
	s.appendSnapshot(snapshot, 0)
}

// iterate steps every model across [min from, max to). A model outside its
// own range sits the iteration out.
func (s *stepper) iterate(ctx context.Context) error {
	from, to := s.bounds()
	for i := from; i < to; i++ {
		if err := ctx.Err(); err != nil {
			return &RunError{Model: -1, Iteration: i, Err: err}
		}

		var recorded model.ModelList
		for idx, m := range s.models {
			p := m.Parameters
			if i < p.From || i >= p.To {
				continue
			}
			if err := s.step(idx, m); err != nil {
				return &RunError{Model: idx, Iteration: i, Err: err}
			}
			m.SetIteration(i + 1)
			if s.opts.ident != nil {
				m.SetIdent(*s.opts.ident)
			}
			if (i+1)%p.RecordFrequency == 0 {
				recorded = append(recorded, m)
			}
		}

		s.opts.logger.Log(ctx, logging.LevelTrace, "iteration complete", "iteration", i+1)
		if len(recorded) > 0 {
			s.appendSnapshot(recorded.Clone(), i+1)
		}
	}
	return nil
}

// step runs one iteration of a single model.
func (s *stepper) step(idx int, m *model.Model) error {
	for _, h := range m.Parameters.BeforeFuncs {
		if err := h.Run(m, s.models); err != nil {
			return fmt.Errorf("before hook: %w", err)
		}
	}

	totals := aggregate.CalcTotals(m.Group)
	if err := ApplyTransitions(m, totals, s.sources[idx]); err != nil {
		return err
	}

	for _, h := range m.Parameters.AfterFuncs {
		if err := h.Run(m, s.models); err != nil {
			return fmt.Errorf("after hook: %w", err)
		}
	}
	return nil
}

// recordLast appends a final snapshot of every model that asks for one and
// whose last iteration was not already captured by the frequency rule.
func (s *stepper) recordLast() {
	var snapshot model.ModelList
	for _, m := range s.models {
		p := m.Parameters
		if !p.RecordLast {
			continue
		}
		if p.To > p.From && p.To%p.RecordFrequency == 0 {
			continue
		}
		m.SetIteration(p.To)
		snapshot = append(snapshot, m.Clone())
	}
	if len(snapshot) > 0 {
		s.appendSnapshot(snapshot, *snapshot[0].Iteration)
	}
}

func (s *stepper) appendSnapshot(snapshot model.ModelList, iteration int) {
	if len(snapshot) == 0 {
		return
	}
	s.series = append(s.series, snapshot)
	s.opts.logger.Debug("snapshot recorded",
		"ident", s.identAttr(),
		"iteration", iteration,
		"models", len(snapshot))
	s.trace("snapshot_recorded", map[string]any{"iteration": iteration, "models": len(snapshot)})
}

func (s *stepper) bounds() (from, to int) {
	from, to = s.models[0].Parameters.From, s.models[0].Parameters.To
	for _, m := range s.models[1:] {
		from = min(from, m.Parameters.From)
		to = max(to, m.Parameters.To)
	}
	return from, to
}

func (s *stepper) fail(err error) {
	s.opts.logger.Error("simulation failed", "ident", s.identAttr(), "error", err)
	s.trace("run_failed", map[string]any{"error": err.Error()})
}

func (s *stepper) trace(event string, fields map[string]any) {
	if s.opts.trace == nil {
		return
	}
	entry := map[string]any{"event": event}
	if s.opts.ident != nil {
		entry["ident"] = *s.opts.ident
	}
	for k, v := range fields {
		entry[k] = v
	}
	s.opts.trace.Log(entry)
}

func (s *stepper) identAttr() any {
	if s.opts.ident == nil {
		return nil
	}
	return *s.opts.ident
}
