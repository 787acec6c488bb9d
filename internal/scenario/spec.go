// Package scenario reads and writes model specifications: YAML or JSON
// documents describing one model or a list of models. Rule and hook names
// in a specification are resolved against the built-in registries.
package scenario

import (
	"fmt"

	"github.com/nvandessel/macrosim/internal/model"
	"github.com/nvandessel/macrosim/internal/ordered"
)

// GroupSpec is the document form of a model.Group.
type GroupSpec struct {
	Name         *string               `json:"name,omitempty" yaml:"name,omitempty"`
	Compartments *ordered.Map[float64] `json:"compartments,omitempty" yaml:"compartments,omitempty"`
	Transitions  *ordered.Map[float64] `json:"transitions,omitempty" yaml:"transitions,omitempty"`
	Groups       []*GroupSpec          `json:"groups,omitempty" yaml:"groups,omitempty"`
	Parameters   map[string]any        `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// ModelSpec is the document form of a model.Model. Ident, Iteration and
// Resolved are only present on models that have been simulated.
type ModelSpec struct {
	GroupSpec `yaml:",inline"`

	Ident     *int           `json:"ident,omitempty" yaml:"ident,omitempty"`
	Iteration *int           `json:"iteration,omitempty" yaml:"iteration,omitempty"`
	Resolved  map[string]any `json:"resolved_parameters,omitempty" yaml:"resolved_parameters,omitempty"`
}

// ToGroup converts a specification into a group tree, resolving rule and
// hook names. The tree is not validated; see model.Validate.
func (s *GroupSpec) ToGroup() (*model.Group, error) {
	if s == nil {
		return nil, nil
	}
	g := &model.Group{
		Compartments: s.Compartments.Clone(),
		Transitions:  s.Transitions.Clone(),
	}
	if s.Name != nil {
		g.Name = model.StringPtr(*s.Name)
	}
	if s.Parameters != nil {
		o, err := DecodeOverrides(s.Parameters)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Label(), err)
		}
		g.Parameters = o
	}
	for i, child := range s.Groups {
		if child == nil {
			return nil, fmt.Errorf("group %q: child %d is empty", g.Label(), i)
		}
		cg, err := child.ToGroup()
		if err != nil {
			return nil, err
		}
		g.Groups = append(g.Groups, cg)
	}
	return g, nil
}

// ToModel converts a specification into a model.
func (s *ModelSpec) ToModel() (*model.Model, error) {
	g, err := s.GroupSpec.ToGroup()
	if err != nil {
		return nil, err
	}
	m := model.New(g)
	if s.Ident != nil {
		m.SetIdent(*s.Ident)
	}
	if s.Iteration != nil {
		m.SetIteration(*s.Iteration)
	}
	if s.Resolved != nil {
		o, err := DecodeOverrides(s.Resolved)
		if err != nil {
			return nil, fmt.Errorf("resolved parameters: %w", err)
		}
		m.Parameters = model.Resolve(nil, o)
	}
	return m, nil
}

// FromGroup converts a group tree into its specification.
func FromGroup(g *model.Group) (*GroupSpec, error) {
	if g == nil {
		return nil, nil
	}
	s := &GroupSpec{
		Compartments: g.Compartments.Clone(),
		Transitions:  g.Transitions.Clone(),
	}
	if g.Name != nil {
		s.Name = model.StringPtr(*g.Name)
	}
	if g.Parameters != nil {
		p, err := EncodeOverrides(g.Parameters)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Label(), err)
		}
		s.Parameters = p
	}
	for _, child := range g.Groups {
		cs, err := FromGroup(child)
		if err != nil {
			return nil, err
		}
		s.Groups = append(s.Groups, cs)
	}
	return s, nil
}

// FromModel converts a model, including its stamps and resolved
// parameters, into its specification.
func FromModel(m *model.Model) (*ModelSpec, error) {
	gs, err := FromGroup(m.Group)
	if err != nil {
		return nil, err
	}
	s := &ModelSpec{GroupSpec: *gs, Ident: m.Ident, Iteration: m.Iteration}
	if m.Parameters != nil {
		p, err := EncodeParameters(m.Parameters)
		if err != nil {
			return nil, fmt.Errorf("resolved parameters: %w", err)
		}
		s.Resolved = p
	}
	return s, nil
}
