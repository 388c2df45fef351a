package collection

import (
	"fmt"
	"sync"
)

// Registry holds the containers of one application by store name.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]*Container
	order      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{containers: make(map[string]*Container)}
}

// Register adds c. Store names must be unique.
func (r *Registry) Register(c *Container) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.containers[c.Name()]; ok {
		return fmt.Errorf("store %q already registered", c.Name())
	}
	r.containers[c.Name()] = c
	r.order = append(r.order, c.Name())
	return nil
}

// Get returns the container registered as name.
func (r *Registry) Get(name string) (*Container, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.containers[name]
	return c, ok
}

// Lookup is like Get but returns an error naming the missing store.
func (r *Registry) Lookup(name string) (*Container, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown store %q", name)
	}
	return c, nil
}

// Names returns the registered store names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Containers returns the registered containers in registration order.
func (r *Registry) Containers() []*Container {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Container, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.containers[name])
	}
	return out
}
