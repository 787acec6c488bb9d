// Package model defines the compartmental model tree: groups of named
// compartments connected by transitions, the resolved simulation parameters
// attached to a model's root, and the hooks that couple models in a list.
package model

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/nvandessel/macrosim/internal/ordered"
	"github.com/nvandessel/macrosim/internal/rules"
)

// ErrMalformedGroup indicates a group that holds both compartments and child
// groups, or neither.
var ErrMalformedGroup = errors.New("malformed group")

// Group is a node of the model tree. A leaf holds compartments; an internal
// node holds child groups. Transitions and parameter overrides declared on a
// group apply to every leaf below it unless a descendant overrides them.
type Group struct {
	Name         *string
	Compartments *ordered.Map[float64]
	Transitions  *ordered.Map[float64]
	Groups       []*Group
	Parameters   *Overrides
}

// Label returns the group name, or "" for an unnamed group.
func (g *Group) Label() string {
	if g.Name == nil {
		return ""
	}
	return *g.Name
}

// IsLeaf reports whether the group carries compartments.
func (g *Group) IsLeaf() bool {
	return g.Compartments != nil
}

// Traverse yields g and then every descendant in pre-order.
// The sequence is restartable and applies no filtering.
func Traverse(g *Group) iter.Seq[*Group] {
	return func(yield func(*Group) bool) {
		walk(g, yield)
	}
}

func walk(g *Group, yield func(*Group) bool) bool {
	if g == nil {
		return true
	}
	if !yield(g) {
		return false
	}
	for _, child := range g.Groups {
		if !walk(child, yield) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the subtree rooted at g.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	out := &Group{
		Compartments: g.Compartments.Clone(),
		Transitions:  g.Transitions.Clone(),
		Parameters:   g.Parameters.Clone(),
	}
	if g.Name != nil {
		name := *g.Name
		out.Name = &name
	}
	if g.Groups != nil {
		out.Groups = make([]*Group, len(g.Groups))
		for i, child := range g.Groups {
			out.Groups[i] = child.Clone()
		}
	}
	return out
}

// Validate checks the tree shape and naming constraints: every group holds
// compartments or child groups but not both, compartment names do not
// contain the transition key separator, and every transition key parses.
func Validate(g *Group) error {
	return validate(g, g.Label())
}

func validate(g *Group, path string) error {
	hasCompartments := g.Compartments != nil
	hasGroups := len(g.Groups) > 0
	switch {
	case hasCompartments && hasGroups:
		return fmt.Errorf("%w: %q has both compartments and groups", ErrMalformedGroup, path)
	case !hasCompartments && !hasGroups:
		return fmt.Errorf("%w: %q has neither compartments nor groups", ErrMalformedGroup, path)
	}

	for name := range g.Compartments.All() {
		if name == "" || strings.Contains(name, rules.Separator) {
			return fmt.Errorf("%w: compartment %q in %q must be non-empty and must not contain %q",
				rules.ErrMalformedTransitionKey, name, path, rules.Separator)
		}
	}
	for key := range g.Transitions.All() {
		if _, err := rules.ParseKey(key); err != nil {
			return fmt.Errorf("group %q: %w", path, err)
		}
	}

	for i, child := range g.Groups {
		if child == nil {
			return fmt.Errorf("%w: %q has a nil child at index %d", ErrMalformedGroup, path, i)
		}
		childPath := path + "/" + child.Label()
		if err := validate(child, childPath); err != nil {
			return err
		}
	}
	return nil
}

// StringPtr returns a pointer to s. Handy for literal group names.
func StringPtr(s string) *string {
	return &s
}
