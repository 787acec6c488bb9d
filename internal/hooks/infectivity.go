package hooks

import (
	"strings"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/rules"
)

// ReduceInfectivity scales every infection coefficient in the model by its
// reduce_infectivity parameter each time it runs. An infection transition
// leads from a susceptible compartment (S prefix) to an exposed (E) or
// infectious (I) one. Run every iteration, it models the most susceptible
// being infected first in a heterogeneous population.
type ReduceInfectivity struct{}

func (ReduceInfectivity) Name() string { return "reduce_infectivity" }

func (ReduceInfectivity) Run(m *model.Model, _ model.ModelList) error {
	reduction := 1.0
	if m.Parameters != nil {
		reduction = m.Parameters.ReduceInfectivity
	}
	if reduction == 1.0 {
		return nil
	}

	for g := range model.Traverse(m.Group) {
		for key, coeff := range g.Transitions.All() {
			k, err := rules.ParseKey(key)
			if err != nil {
				return err
			}
			if isInfection(k) {
				g.Transitions.Set(key, coeff*reduction)
			}
		}
	}
	return nil
}

func isInfection(k rules.Key) bool {
	return strings.HasPrefix(k.From, "S") &&
		(strings.HasPrefix(k.To, "E") || strings.HasPrefix(k.To, "I"))
}
