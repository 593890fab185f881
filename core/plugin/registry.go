package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jdelaire/plugwire/core/filter"
)

// ErrDuplicate is returned when a plugin name is registered twice.
var ErrDuplicate = errors.New("plugin already registered")

// Registry holds plugins in registration order.
type Registry struct {
	mu      sync.RWMutex
	plugins []*Plugin
	byName  map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Plugin),
	}
}

// Register appends p. Names must be unique.
func (r *Registry) Register(p *Plugin) error {
	if p == nil {
		return fmt.Errorf("register: nil plugin")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, p.name)
	}
	r.byName[p.name] = p
	r.plugins = append(r.plugins, p)
	return nil
}

// Build runs each builder and registers the result.
func (r *Registry) Build(settings filter.Settings, builders ...Builder) error {
	for i, b := range builders {
		p, err := b(settings)
		if err != nil {
			return fmt.Errorf("build plugin %d: %w", i, err)
		}
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) (*Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q not found", name)
	}
	return p, nil
}

// Plugins returns a snapshot of the registered plugins in order.
func (r *Registry) Plugins() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}
