package scenario

import (
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/nvandessel/macrosim/internal/hooks"
	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/rules"
)

var (
	// ErrUnknownRule indicates a transition_funcs entry naming no known rule.
	ErrUnknownRule = errors.New("unknown transition rule")
	// ErrUnknownHook indicates a before_funcs or after_funcs entry naming no
	// known hook, or a hook that cannot be written by name.
	ErrUnknownHook = errors.New("unknown hook")
	// ErrInvalidParameter indicates a parameter value of the wrong type.
	ErrInvalidParameter = errors.New("invalid parameter value")
)

// Parameter keys in specification documents.
const (
	keyFrom                       = "from"
	keyTo                         = "to"
	keyRecordFrequency            = "record_frequency"
	keyRecordFirst                = "record_first"
	keyRecordLast                 = "record_last"
	keyNoise                      = "noise"
	keyDiscrete                   = "discrete"
	keySeed                       = "seed"
	keyReduceInfectivity          = "reduce_infectivity"
	keyAsymptomaticInfectiousness = "asymptomatic_infectiousness"
	keyTreatmentInfectiousness    = "treatment_infectiousness"
	keyTransitionFuncs            = "transition_funcs"
	keyBeforeFuncs                = "before_funcs"
	keyAfterFuncs                 = "after_funcs"
)

// DecodeOverrides converts a parameters mapping into overrides. Keys
// without a field of their own are kept in Extra for hooks to read.
func DecodeOverrides(raw map[string]any) (*model.Overrides, error) {
	o := &model.Overrides{}
	for key, v := range raw {
		var err error
		switch key {
		case keyFrom:
			o.From, err = intParam(key, v)
		case keyTo:
			o.To, err = intParam(key, v)
		case keyRecordFrequency:
			o.RecordFrequency, err = intParam(key, v)
		case keyRecordFirst:
			o.RecordFirst, err = boolParam(key, v)
		case keyRecordLast:
			o.RecordLast, err = boolParam(key, v)
		case keyNoise:
			o.Noise, err = floatParam(key, v)
		case keyDiscrete:
			o.Discrete, err = boolParam(key, v)
		case keySeed:
			o.Seed, err = seedParam(v)
		case keyReduceInfectivity:
			o.ReduceInfectivity, err = floatParam(key, v)
		case keyAsymptomaticInfectiousness:
			o.AsymptomaticInfectiousness, err = floatParam(key, v)
		case keyTreatmentInfectiousness:
			o.TreatmentInfectiousness, err = floatParam(key, v)
		case keyTransitionFuncs:
			o.TransitionFuncs, err = decodeRules(v)
		case keyBeforeFuncs:
			o.BeforeFuncs, err = decodeHooks(key, v)
		case keyAfterFuncs:
			o.AfterFuncs, err = decodeHooks(key, v)
		default:
			if o.Extra == nil {
				o.Extra = make(map[string]any)
			}
			o.Extra[key] = v
		}
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// EncodeOverrides converts overrides back into a parameters mapping.
func EncodeOverrides(o *model.Overrides) (map[string]any, error) {
	out := make(map[string]any)
	maps.Copy(out, o.Extra)
	putIf(out, keyFrom, o.From)
	putIf(out, keyTo, o.To)
	putIf(out, keyRecordFrequency, o.RecordFrequency)
	putIf(out, keyRecordFirst, o.RecordFirst)
	putIf(out, keyRecordLast, o.RecordLast)
	putIf(out, keyNoise, o.Noise)
	putIf(out, keyDiscrete, o.Discrete)
	putIf(out, keySeed, o.Seed)
	putIf(out, keyReduceInfectivity, o.ReduceInfectivity)
	putIf(out, keyAsymptomaticInfectiousness, o.AsymptomaticInfectiousness)
	putIf(out, keyTreatmentInfectiousness, o.TreatmentInfectiousness)
	if o.TransitionFuncs != nil {
		out[keyTransitionFuncs] = encodeRules(o.TransitionFuncs)
	}
	if err := putHooks(out, keyBeforeFuncs, o.BeforeFuncs); err != nil {
		return nil, err
	}
	if err := putHooks(out, keyAfterFuncs, o.AfterFuncs); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeParameters converts a full parameter set into a parameters mapping.
func EncodeParameters(p *model.Parameters) (map[string]any, error) {
	out := make(map[string]any)
	maps.Copy(out, p.Extra)
	out[keyFrom] = p.From
	out[keyTo] = p.To
	out[keyRecordFrequency] = p.RecordFrequency
	out[keyRecordFirst] = p.RecordFirst
	out[keyRecordLast] = p.RecordLast
	out[keyNoise] = p.Noise
	out[keyDiscrete] = p.Discrete
	putIf(out, keySeed, p.Seed)
	out[keyReduceInfectivity] = p.ReduceInfectivity
	out[keyAsymptomaticInfectiousness] = p.AsymptomaticInfectiousness
	out[keyTreatmentInfectiousness] = p.TreatmentInfectiousness
	out[keyTransitionFuncs] = encodeRules(p.TransitionFuncs)
	if err := putHooks(out, keyBeforeFuncs, p.BeforeFuncs); err != nil {
		return nil, err
	}
	if err := putHooks(out, keyAfterFuncs, p.AfterFuncs); err != nil {
		return nil, err
	}
	return out, nil
}

func putIf[T any](out map[string]any, key string, v *T) {
	if v != nil {
		out[key] = *v
	}
}

func encodeRules(fns map[string]rules.Rule) map[string]any {
	out := make(map[string]any, len(fns))
	for key, r := range fns {
		out[key] = r.Name()
	}
	return out
}

func putHooks(out map[string]any, key string, hs []model.Hook) error {
	if hs == nil {
		return nil
	}
	names := make([]any, 0, len(hs))
	for i, h := range hs {
		named, ok := h.(hooks.Named)
		if !ok {
			return fmt.Errorf("%w: %s[%d] has no name", ErrUnknownHook, key, i)
		}
		names = append(names, named.Name())
	}
	out[key] = names
	return nil
}

func decodeRules(v any) (map[string]rules.Rule, error) {
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a mapping, got %T", ErrInvalidParameter, keyTransitionFuncs, v)
	}
	out := make(map[string]rules.Rule, len(raw))
	for key, nameVal := range raw {
		name, ok := nameVal.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%s] must be a rule name, got %T", ErrInvalidParameter, keyTransitionFuncs, key, nameVal)
		}
		r, ok := rules.ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s (known: %v)", ErrUnknownRule, name, key, rules.Names())
		}
		out[key] = r
	}
	return out, nil
}

func decodeHooks(key string, v any) ([]model.Hook, error) {
	raw, ok := v.([]any)
	if !ok {
		if v == nil {
			return []model.Hook{}, nil
		}
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidParameter, key, v)
	}
	out := make([]model.Hook, 0, len(raw))
	for _, nameVal := range raw {
		name, ok := nameVal.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be hook names, got %T", ErrInvalidParameter, key, nameVal)
		}
		h, ok := hooks.ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %s (known: %v)", ErrUnknownHook, name, key, hooks.Names())
		}
		out = append(out, h)
	}
	return out, nil
}

func intParam(key string, v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case uint64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidParameter, key, x)
		}
		n = int(x)
	default:
		return nil, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidParameter, key, v)
	}
	return &n, nil
}

func floatParam(key string, v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	default:
		return nil, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidParameter, key, v)
	}
	return &f, nil
}

func boolParam(key string, v any) (*bool, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be true or false, got %T", ErrInvalidParameter, key, v)
	}
	return &b, nil
}

func seedParam(v any) (*uint64, error) {
	var s uint64
	switch x := v.(type) {
	case uint64:
		s = x
	case int:
		if x < 0 {
			return nil, fmt.Errorf("%w: seed must not be negative", ErrInvalidParameter)
		}
		s = uint64(x)
	case int64:
		if x < 0 {
			return nil, fmt.Errorf("%w: seed must not be negative", ErrInvalidParameter)
		}
		s = uint64(x)
	case float64:
		if x < 0 || x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: seed must be a non-negative whole number", ErrInvalidParameter)
		}
		s = uint64(x)
	default:
		return nil, fmt.Errorf("%w: seed must be an integer, got %T", ErrInvalidParameter, v)
	}
	return &s, nil
}
