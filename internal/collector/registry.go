package collector

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds one Orchestrator per source name.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Orchestrator
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]*Orchestrator)}
}

// Register adds o under its source name.
func (r *Registry) Register(o *Orchestrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[o.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, o.Name())
	}
	r.items[o.Name()] = o
	return nil
}

// Get looks up the orchestrator for name.
func (r *Registry) Get(name string) (*Orchestrator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return o, nil
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the orchestrators ordered by name.
func (r *Registry) All() []*Orchestrator {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Orchestrator, 0, len(names))
	for _, name := range names {
		if o, ok := r.items[name]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
