// Package hooks provides the built-in iteration hooks and the registry that
// resolves hook names used in model specifications.
package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nvandessel/macrosim/internal/model"
)

// Named is a hook that can be referenced by name in a model specification.
type Named interface {
	model.Hook
	Name() string
}

// Registry manages registered hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Named
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[string]Named),
	}
}

// Register adds a hook. Registering a name twice is an error.
func (r *Registry) Register(h Named) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[h.Name()]; exists {
		return fmt.Errorf("hook %q already registered", h.Name())
	}
	r.hooks[h.Name()] = h
	return nil
}

// Get returns a hook by name.
func (r *Registry) Get(name string) (Named, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[name]
	return h, ok
}

// Names lists registered hook names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in hooks.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, h := range []Named{ReduceInfectivity{}, Migration{}} {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}

// ByName looks a hook up in the default registry.
func ByName(name string) (Named, bool) {
	return DefaultRegistry.Get(name)
}

// Names lists the hooks in the default registry.
func Names() []string {
	return DefaultRegistry.Names()
}
