package source

import (
	"sort"
	"sync"
)

// Registry holds all registered source adapters keyed by name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Name]Adapter
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[Name]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not registered.
func (r *Registry) Get(name Name) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// All returns all registered adapters sorted by priority (best first).
func (r *Registry) All() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

// ISRCCapable returns the registered adapters that query by ISRC, in
// priority order.
func (r *Registry) ISRCCapable() []Adapter {
	var result []Adapter
	for _, a := range r.All() {
		if _, ok := a.(ISRCLookup); ok {
			result = append(result, a)
		}
	}
	return result
}

// NameOnly returns the registered adapters that can only query by artist
// and title, in priority order.
func (r *Registry) NameOnly() []Adapter {
	var result []Adapter
	for _, a := range r.All() {
		if _, isrc := a.(ISRCLookup); isrc {
			continue
		}
		if _, ok := a.(NameLookup); ok {
			result = append(result, a)
		}
	}
	return result
}
