// Package adapter – service registry.
//
// The registry maps the closed set of service identifiers to their adapter
// implementations. It replaces per-service dynamic dispatch: the orchestrator
// resolves adapters here and nowhere else.
package adapter

import (
	"fmt"
	"sync"
)

// Registry holds the configured adapters keyed by service identifier.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Service]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Service]Adapter)}
}

// Register adds (or replaces) the adapter for its own declared service.
// Registering a nil adapter is a programming error and panics.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		panic("adapter: Register called with nil adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Service()] = a
}

// Get returns the adapter for svc, or an error if none is registered.
func (r *Registry) Get(svc Service) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[svc]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for service %q", svc)
	}
	return a, nil
}

// Services returns the registered service identifiers in the stable
// AllServices order, filtered to what is actually registered.
func (r *Registry) Services() []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Service, 0, len(r.adapters))
	for _, svc := range AllServices() {
		if _, ok := r.adapters[svc]; ok {
			out = append(out, svc)
		}
	}
	return out
}
