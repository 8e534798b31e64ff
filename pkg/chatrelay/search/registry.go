package search

import (
	"fmt"
	"net/http"
	"sync"
)

// Constructor builds a Provider bound to the given shared HTTP client.
type Constructor func(client *http.Client) Provider

// Registry is a name→constructor mapping, matching spec.md §9's flat
// interface + registry design (no provider class hierarchy).
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry returns a Registry pre-populated with every built-in provider.
func NewRegistry() *Registry {
	r := &Registry{ctors: make(map[string]Constructor)}
	r.register()
	return r
}

func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Build constructs a named provider bound to client, or an error if the
// name is not registered.
func (r *Registry) Build(name string, client *http.Client) (Provider, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("search: unknown provider %q", name)
	}
	return ctor(client), nil
}

// Names lists every registered provider name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	return names
}
