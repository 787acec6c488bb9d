package simulation

import (
	"fmt"
	"math"

	"github.com/nvandessel/macrosim/internal/aggregate"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
	"github.com/nvandessel/macrosim/internal/rules"
)

// dispatcher applies one iteration of transitions to every leaf of a model.
type dispatcher struct {
	m      *model.Model
	totals aggregate.Totals
	src    Source
}

// ApplyTransitions runs one iteration of every transition in m's tree
// against the given totals, drawing noise from src when the parameters ask
// for it. m must carry resolved parameters.
func ApplyTransitions(m *model.Model, totals aggregate.Totals, src Source) error {
	d := &dispatcher{m: m, totals: totals, src: src}
	return d.update(m.Group, nil, m.Parameters, true)
}

// update walks the tree carrying the inherited transitions and parameters.
// A group's own transitions override inherited ones with the same key in
// place and append new keys; its parameter overrides apply to its branch.
func (d *dispatcher) update(g *model.Group, inherited *ordered.Map[float64], params *model.Parameters, root bool) error {
	effective := inherited
	if g.Transitions.Len() > 0 {
		effective = inherited.Clone()
		if effective == nil {
			effective = ordered.New[float64]()
		}
		for key, coeff := range g.Transitions.All() {
			effective.Set(key, coeff)
		}
	}
	if !root && g.Parameters != nil {
		params = model.Resolve(params, g.Parameters)
	}

	if g.Compartments != nil {
		if err := d.updateLeaf(g, effective, params); err != nil {
			return err
		}
	}

	for _, child := range g.Groups {
		if err := d.update(child, effective, params, false); err != nil {
			return err
		}
	}
	return nil
}

type delta struct {
	key   rules.Key
	value float64
}

// updateLeaf computes every delta from the leaf's current compartments and
// only then applies them, so no transition sees another's update within the
// same iteration.
func (d *dispatcher) updateLeaf(g *model.Group, transitions *ordered.Map[float64], params *model.Parameters) error {
	compartments := g.Compartments

	var infectiousness *float64
	infectious := func() float64 {
		if infectiousness == nil {
			v := aggregate.SumInfectiousness(d.m)
			infectiousness = &v
		}
		return *infectiousness
	}

	deltas := make([]delta, 0, transitions.Len())
	for keyStr, coeff := range transitions.All() {
		key, err := rules.ParseKey(keyStr)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Label(), err)
		}
		if !compartments.Has(key.From) || !compartments.Has(key.To) {
			return fmt.Errorf("group %q: transition %s: %w", g.Label(), key, rules.ErrUnknownCompartment)
		}

		rule := params.RuleFor(keyStr)
		val, err := rule.Delta(rules.Input{
			Key:            key,
			Coefficient:    coeff,
			Compartments:   compartments,
			Totals:         d.totals,
			Infectiousness: infectious,
		})
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Label(), err)
		}

		if params.Noise != 0 {
			lo, hi := 1.0-params.Noise, 1.0+params.Noise
			val *= lo + (hi-lo)*d.src.Float64()
		}
		if params.Discrete {
			val = math.RoundToEven(val)
		}
		deltas = append(deltas, delta{key: key, value: val})
	}

	for _, dl := range deltas {
		from, _ := compartments.Get(dl.key.From)
		compartments.Set(dl.key.From, from-dl.value)
		to, _ := compartments.Get(dl.key.To)
		compartments.Set(dl.key.To, to+dl.value)
	}
	return nil
}
