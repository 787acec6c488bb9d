// Package rules defines transition update rules: the computation of how many
// individuals a transition moves between two compartments in one iteration.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/macrosim/internal/ordered"
)

// Separator splits a transition key into its source and destination
// compartment names. Compartment names must not contain it.
const Separator = "_"

// DefaultKey is the transition_funcs entry used when a transition has no
// rule of its own.
const DefaultKey = "default"

var (
	// ErrMalformedTransitionKey indicates a key that is not exactly two
	// non-empty compartment names joined by Separator.
	ErrMalformedTransitionKey = errors.New("malformed transition key")

	// ErrZeroPopulation indicates a population-proportional rule evaluated
	// while the living population N was zero.
	ErrZeroPopulation = errors.New("living population N is zero")

	// ErrUnknownCompartment indicates a transition naming a compartment that
	// is not present where the rule needs it.
	ErrUnknownCompartment = errors.New("unknown compartment")
)

// Key is a parsed transition key.
type Key struct {
	From string
	To   string
}

// String returns the key in From_To form.
func (k Key) String() string {
	return k.From + Separator + k.To
}

// ParseKey splits a From_To transition key.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, Separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedTransitionKey, s)
	}
	return Key{From: parts[0], To: parts[1]}, nil
}

// Input is everything a rule may read to compute one delta.
type Input struct {
	Key         Key
	Coefficient float64

	// Compartments is the pre-update snapshot of the node being updated.
	Compartments *ordered.Map[float64]

	// Totals holds model-wide compartment sums plus "N".
	Totals *ordered.Map[float64]

	// Infectiousness returns the weighted infectious sum of the whole model.
	// It is only called by rules that need it.
	Infectiousness func() float64
}

func (in Input) compartment(name string) (float64, error) {
	v, ok := in.Compartments.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q in transition %s", ErrUnknownCompartment, name, in.Key)
	}
	return v, nil
}

func (in Input) population() (float64, error) {
	n, _ := in.Totals.Get("N")
	if n == 0 {
		return 0, fmt.Errorf("transition %s: %w", in.Key, ErrZeroPopulation)
	}
	return n, nil
}

// Rule computes the number of individuals a transition moves.
type Rule interface {
	Name() string
	Delta(in Input) (float64, error)
}

// MassAction moves coefficient × from × total[to] / N: infection driven by
// one target compartment's share of the population.
type MassAction struct{}

func (MassAction) Name() string { return "mass_action" }

func (MassAction) Delta(in Input) (float64, error) {
	from, err := in.compartment(in.Key.From)
	if err != nil {
		return 0, err
	}
	to, ok := in.Totals.Get(in.Key.To)
	if !ok {
		return 0, fmt.Errorf("%w: %q has no model total in transition %s", ErrUnknownCompartment, in.Key.To, in.Key)
	}
	n, err := in.population()
	if err != nil {
		return 0, err
	}
	return in.Coefficient * from * to / n, nil
}

// Proportional moves coefficient × from: decay, progression, recovery, death.
type Proportional struct{}

func (Proportional) Name() string { return "proportional" }

func (Proportional) Delta(in Input) (float64, error) {
	from, err := in.compartment(in.Key.From)
	if err != nil {
		return 0, err
	}
	return in.Coefficient * from, nil
}

// Birth moves coefficient × to: inflow proportional to the destination.
type Birth struct{}

func (Birth) Name() string { return "birth" }

func (Birth) Delta(in Input) (float64, error) {
	to, err := in.compartment(in.Key.To)
	if err != nil {
		return 0, err
	}
	return in.Coefficient * to, nil
}

// ForceOfInfection moves coefficient × from × infectiousness / N, where
// infectiousness weights every infectious-class compartment in the model.
type ForceOfInfection struct{}

func (ForceOfInfection) Name() string { return "force_of_infection" }

func (ForceOfInfection) Delta(in Input) (float64, error) {
	from, err := in.compartment(in.Key.From)
	if err != nil {
		return 0, err
	}
	if in.Infectiousness == nil {
		return 0, fmt.Errorf("transition %s: no infectiousness source", in.Key)
	}
	infections := in.Infectiousness()
	n, err := in.population()
	if err != nil {
		return 0, err
	}
	return in.Coefficient * from * infections / n, nil
}

var builtin = map[string]Rule{
	MassAction{}.Name():       MassAction{},
	Proportional{}.Name():     Proportional{},
	Birth{}.Name():            Birth{},
	ForceOfInfection{}.Name(): ForceOfInfection{},
}

// ByName returns the built-in rule with the given name.
func ByName(name string) (Rule, bool) {
	r, ok := builtin[name]
	return r, ok
}

// Names lists the built-in rule names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for n := range builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Defaults returns a fresh transition_funcs table with the built-in
// assignments: S_I and S_E use mass action, S_I1 and S_E1 use the weighted
// force of infection, B_S is births and everything else is proportional.
func Defaults() map[string]Rule {
	return map[string]Rule{
		"S_I":      MassAction{},
		"S_E":      MassAction{},
		"S_I1":     ForceOfInfection{},
		"S_E1":     ForceOfInfection{},
		"B_S":      Birth{},
		DefaultKey: Proportional{},
	}
}
