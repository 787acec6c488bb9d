// Package aggregate computes population-wide sums over a model tree.
package aggregate

import (
	"strings"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
)

// Compartment name prefixes with special meaning.
const (
	// DeadPrefix marks compartments excluded from the living population N.
	DeadPrefix = "D"
	// InfectiousPrefix marks fully infectious compartments (weight 1).
	InfectiousPrefix = "I"
	// TreatmentPrefix marks compartments weighted by treatment_infectiousness.
	TreatmentPrefix = "T"
	// AsymptomaticPrefix marks compartments weighted by asymptomatic_infectiousness.
	AsymptomaticPrefix = "A"
)

// PopulationKey is the totals entry holding the living population.
const PopulationKey = "N"

// DefaultIgnore lists the totals skipped by GrandSumTotals when the caller
// gives no ignore set: the birth pool and the running total itself.
var DefaultIgnore = []string{"B", PopulationKey}

// Totals maps each compartment name to its sum over the whole tree, plus
// PopulationKey. PopulationKey comes first, then names in first-seen order.
type Totals = *ordered.Map[float64]

// CalcTotals sums every compartment by exact name across all groups of the
// tree rooted at g, and accumulates N over every compartment whose name does
// not start with DeadPrefix.
func CalcTotals(g *model.Group) Totals {
	totals := ordered.New[float64]()
	totals.Set(PopulationKey, 0)
	var n float64
	for group := range model.Traverse(g) {
		for key, value := range group.Compartments.All() {
			prev, _ := totals.Get(key)
			totals.Set(key, prev+value)
			if !strings.HasPrefix(key, DeadPrefix) {
				n += value
			}
		}
	}
	totals.Set(PopulationKey, n)
	return totals
}

// SumInfectiousness returns the weighted sum of all infectious-class
// compartments in m: infectious at weight 1, treatment and asymptomatic at
// the weights set in m's parameters.
func SumInfectiousness(m *model.Model) float64 {
	ti, ai := 1.0, 1.0
	if m.Parameters != nil {
		ti = m.Parameters.TreatmentInfectiousness
		ai = m.Parameters.AsymptomaticInfectiousness
	}
	return sumWeighted(m.Group, ti, ai)
}

func sumWeighted(g *model.Group, treatment, asymptomatic float64) float64 {
	total := 0.0
	for group := range model.Traverse(g) {
		for key, value := range group.Compartments.All() {
			switch {
			case strings.HasPrefix(key, InfectiousPrefix):
				total += value
			case strings.HasPrefix(key, TreatmentPrefix):
				total += treatment * value
			case strings.HasPrefix(key, AsymptomaticPrefix):
				total += asymptomatic * value
			}
		}
	}
	return total
}

// SumTotals adds per-model totals key by key. Keys appear in first-seen
// order across the inputs.
func SumTotals(ts []Totals) Totals {
	out := ordered.New[float64]()
	for _, t := range ts {
		for key, value := range t.All() {
			prev, _ := out.Get(key)
			out.Set(key, prev+value)
		}
	}
	return out
}

// GrandSumTotals adds every entry of every totals map except the ignored
// names. With no ignore names, DefaultIgnore applies.
func GrandSumTotals(ts []Totals, ignore ...string) float64 {
	if len(ignore) == 0 {
		ignore = DefaultIgnore
	}
	skip := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		skip[name] = true
	}
	total := 0.0
	for _, t := range ts {
		for key, value := range t.All() {
			if !skip[key] {
				total += value
			}
		}
	}
	return total
}
