package model

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/nvandessel/macrosim/internal/rules"
)

// ErrInvalidParameters indicates a resolved parameter set that cannot drive
// a simulation.
var ErrInvalidParameters = errors.New("invalid parameters")

// Hook runs before or after each iteration of a model. It may mutate the
// model or any sibling in the list; nothing else runs while it does.
type Hook interface {
	Run(m *Model, siblings ModelList) error
}

// HookFunc adapts a function to the Hook interface.
type HookFunc func(m *Model, siblings ModelList) error

// Run calls f(m, siblings).
func (f HookFunc) Run(m *Model, siblings ModelList) error {
	return f(m, siblings)
}

// Parameters is a fully specified simulation configuration for one model.
type Parameters struct {
	From            int
	To              int
	RecordFrequency int
	RecordFirst     bool
	RecordLast      bool

	// Noise perturbs every delta by a uniform factor in [1-Noise, 1+Noise].
	Noise float64
	// Discrete rounds every delta to a whole number of individuals.
	Discrete bool
	// Seed makes noise reproducible. Nil draws a fresh seed per run.
	Seed *uint64

	ReduceInfectivity          float64
	AsymptomaticInfectiousness float64
	TreatmentInfectiousness    float64

	// TransitionFuncs maps a transition key, or rules.DefaultKey, to the
	// rule that computes its delta.
	TransitionFuncs map[string]rules.Rule
	BeforeFuncs     []Hook
	AfterFuncs      []Hook

	// Extra carries user keys that have no field of their own, for hooks
	// that read custom settings.
	Extra map[string]any
}

// Overrides is a partial parameter set. Nil fields keep the value they
// are resolved onto.
type Overrides struct {
	From            *int
	To              *int
	RecordFrequency *int
	RecordFirst     *bool
	RecordLast      *bool
	Noise           *float64
	Discrete        *bool
	Seed            *uint64

	ReduceInfectivity          *float64
	AsymptomaticInfectiousness *float64
	TreatmentInfectiousness    *float64

	// TransitionFuncs entries are merged one by one.
	TransitionFuncs map[string]rules.Rule
	// Non-nil hook lists replace the inherited list wholesale.
	BeforeFuncs []Hook
	AfterFuncs  []Hook

	Extra map[string]any
}

// DefaultParameters returns a fresh copy of the default configuration:
// iterations 0 to 365, a snapshot every 50 iterations plus the first and
// last, no noise, continuous deltas and the built-in transition rules.
func DefaultParameters() *Parameters {
	return &Parameters{
		From:                       0,
		To:                         365,
		RecordFrequency:            50,
		RecordFirst:                true,
		RecordLast:                 true,
		Noise:                      0,
		Discrete:                   false,
		ReduceInfectivity:          1.0,
		AsymptomaticInfectiousness: 1.0,
		TreatmentInfectiousness:    1.0,
		TransitionFuncs:            rules.Defaults(),
		BeforeFuncs:                []Hook{},
		AfterFuncs:                 []Hook{},
		Extra:                      map[string]any{},
	}
}

// Clone returns a copy of p that shares no maps or slices with it.
func (p *Parameters) Clone() *Parameters {
	if p == nil {
		return nil
	}
	out := *p
	if p.Seed != nil {
		seed := *p.Seed
		out.Seed = &seed
	}
	out.TransitionFuncs = maps.Clone(p.TransitionFuncs)
	out.BeforeFuncs = slices.Clone(p.BeforeFuncs)
	out.AfterFuncs = slices.Clone(p.AfterFuncs)
	out.Extra = cloneExtra(p.Extra)
	return &out
}

// Clone returns a copy of o that shares no maps, slices or pointers with it.
func (o *Overrides) Clone() *Overrides {
	if o == nil {
		return nil
	}
	return &Overrides{
		From:                       clonePtr(o.From),
		To:                         clonePtr(o.To),
		RecordFrequency:            clonePtr(o.RecordFrequency),
		RecordFirst:                clonePtr(o.RecordFirst),
		RecordLast:                 clonePtr(o.RecordLast),
		Noise:                      clonePtr(o.Noise),
		Discrete:                   clonePtr(o.Discrete),
		Seed:                       clonePtr(o.Seed),
		ReduceInfectivity:          clonePtr(o.ReduceInfectivity),
		AsymptomaticInfectiousness: clonePtr(o.AsymptomaticInfectiousness),
		TreatmentInfectiousness:    clonePtr(o.TreatmentInfectiousness),
		TransitionFuncs:            maps.Clone(o.TransitionFuncs),
		BeforeFuncs:                slices.Clone(o.BeforeFuncs),
		AfterFuncs:                 slices.Clone(o.AfterFuncs),
		Extra:                      cloneExtra(o.Extra),
	}
}

// Resolve merges overrides onto a copy of base. Neither input is mutated
// and the result aliases neither. Scalars and hook lists are replaced,
// TransitionFuncs is merged entry by entry so a single rule can be swapped
// without losing the others, and Extra keys are added or, when both sides
// hold a map, merged entry by entry.
func Resolve(base *Parameters, o *Overrides) *Parameters {
	if base == nil {
		base = DefaultParameters()
	}
	p := base.Clone()
	if o == nil {
		return p
	}

	setIf(&p.From, o.From)
	setIf(&p.To, o.To)
	setIf(&p.RecordFrequency, o.RecordFrequency)
	setIf(&p.RecordFirst, o.RecordFirst)
	setIf(&p.RecordLast, o.RecordLast)
	setIf(&p.Noise, o.Noise)
	setIf(&p.Discrete, o.Discrete)
	setIf(&p.ReduceInfectivity, o.ReduceInfectivity)
	setIf(&p.AsymptomaticInfectiousness, o.AsymptomaticInfectiousness)
	setIf(&p.TreatmentInfectiousness, o.TreatmentInfectiousness)
	if o.Seed != nil {
		seed := *o.Seed
		p.Seed = &seed
	}

	if p.TransitionFuncs == nil {
		p.TransitionFuncs = make(map[string]rules.Rule, len(o.TransitionFuncs))
	}
	for k, r := range o.TransitionFuncs {
		p.TransitionFuncs[k] = r
	}

	if o.BeforeFuncs != nil {
		p.BeforeFuncs = slices.Clone(o.BeforeFuncs)
	}
	if o.AfterFuncs != nil {
		p.AfterFuncs = slices.Clone(o.AfterFuncs)
	}

	if p.Extra == nil {
		p.Extra = make(map[string]any, len(o.Extra))
	}
	for k, v := range o.Extra {
		existing, ok := p.Extra[k].(map[string]any)
		incoming, isMap := v.(map[string]any)
		if ok && isMap {
			for k2, v2 := range incoming {
				existing[k2] = cloneValue(v2)
			}
			continue
		}
		p.Extra[k] = cloneValue(v)
	}
	return p
}

// Validate checks that p can drive a simulation. A From greater than To is
// allowed and simply yields no iterations.
func (p *Parameters) Validate() error {
	if p.RecordFrequency <= 0 {
		return fmt.Errorf("%w: record_frequency must be positive, got %d", ErrInvalidParameters, p.RecordFrequency)
	}
	if p.Noise < 0 || p.Noise >= 1 {
		return fmt.Errorf("%w: noise must be in [0, 1), got %v", ErrInvalidParameters, p.Noise)
	}
	if _, ok := p.TransitionFuncs[rules.DefaultKey]; !ok {
		return fmt.Errorf("%w: transition_funcs has no %q rule", ErrInvalidParameters, rules.DefaultKey)
	}
	for k, r := range p.TransitionFuncs {
		if r == nil {
			return fmt.Errorf("%w: transition_funcs[%q] is nil", ErrInvalidParameters, k)
		}
	}
	return nil
}

// RuleFor returns the rule for a transition key, falling back to the
// default rule.
func (p *Parameters) RuleFor(key string) rules.Rule {
	if r, ok := p.TransitionFuncs[key]; ok {
		return r
	}
	return p.TransitionFuncs[rules.DefaultKey]
}

// Float returns Extra[key] as a float64, or def when absent or not numeric.
func (p *Parameters) Float(key string, def float64) float64 {
	switch v := p.Extra[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneExtra(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneExtra(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
