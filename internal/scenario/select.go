package scenario

import (
	"errors"

	"github.com/nvandessel/macrosim/internal/model"
)

var (
	// ErrNoSource indicates neither a specification nor a scenario name.
	ErrNoSource = errors.New("a specification or a scenario name is required")
	// ErrAmbiguousSource indicates both a specification and a scenario name.
	ErrAmbiguousSource = errors.New("give a specification or a scenario name, not both")
)

// Select decodes spec when it is non-empty, otherwise the built-in scenario
// called name.
func Select(spec []byte, name string) (model.ModelList, error) {
	switch {
	case len(spec) > 0 && name != "":
		return nil, ErrAmbiguousSource
	case len(spec) > 0:
		return Decode(spec)
	case name != "":
		return Builtin(name)
	}
	return nil, ErrNoSource
}

// SetSeed stores seed in the root parameters of every model in list. A model
// that already carries a seed keeps it unless overwrite is set.
func SetSeed(list model.ModelList, seed uint64, overwrite bool) {
	for _, m := range list {
		if m.Group.Parameters == nil {
			m.Group.Parameters = &model.Overrides{}
		}
		if m.Group.Parameters.Seed != nil && !overwrite {
			continue
		}
		s := seed
		m.Group.Parameters.Seed = &s
	}
}

// Replicate returns n independent copies of list, one per run of a series.
func Replicate(list model.ModelList, n int) []model.ModelList {
	lists := make([]model.ModelList, n)
	for i := range lists {
		lists[i] = list.Clone()
	}
	return lists
}
