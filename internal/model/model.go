package model

// Model is a group tree whose root carries resolved parameters and, once a
// simulation has touched it, a run identifier and the iteration it reflects.
type Model struct {
	*Group

	Parameters *Parameters
	Ident      *int
	Iteration  *int
}

// ModelList is a set of models simulated together so hooks can couple them.
type ModelList []*Model

// ModelListSeries is the recorded time series of a ModelList, one
// independent snapshot per recorded iteration.
type ModelListSeries []ModelList

// New wraps a group tree as an unresolved model.
func New(root *Group) *Model {
	return &Model{Group: root}
}

// Clone returns a deep copy of m. Hooks and rules are shared; they are
// configuration, not state.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}
	return &Model{
		Group:      m.Group.Clone(),
		Parameters: m.Parameters.Clone(),
		Ident:      clonePtr(m.Ident),
		Iteration:  clonePtr(m.Iteration),
	}
}

// Clone deep-copies every model in the list.
func (l ModelList) Clone() ModelList {
	if l == nil {
		return nil
	}
	out := make(ModelList, len(l))
	for i, m := range l {
		out[i] = m.Clone()
	}
	return out
}

// SetIdent stamps the run identifier.
func (m *Model) SetIdent(ident int) {
	m.Ident = &ident
}

// SetIteration stamps the iteration the model state reflects.
func (m *Model) SetIteration(i int) {
	m.Iteration = &i
}

// IterationOr returns the stamped iteration, or def if unstamped.
func (m *Model) IterationOr(def int) int {
	if m.Iteration == nil {
		return def
	}
	return *m.Iteration
}
