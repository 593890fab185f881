// Package plugin groups handlers and resolves which one an event selects.
package plugin

import (
	"context"
	"fmt"
	"slices"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/filter"
	"github.com/jdelaire/plugwire/core/handler"
	"github.com/jdelaire/plugwire/core/session"
)

// Builder creates a plugin once the command settings are known.
type Builder func(settings filter.Settings) (*Plugin, error)

// Plugin is an ordered group of handlers. Add handlers before the plugin is
// handed to a dispatcher; Resolve may then be called concurrently.
type Plugin struct {
	name     string
	filePath string
	handlers []handler.Handler
}

// New creates an empty plugin.
func New(name, filePath string) *Plugin {
	return &Plugin{name: name, filePath: filePath}
}

// Add appends h. Handlers are tried in the order they were added.
func (p *Plugin) Add(h handler.Handler) error {
	if !h.HasCallback() {
		return fmt.Errorf("plugin %q: handler %q: %w", p.name, h.Name(), handler.ErrNoCallback)
	}
	p.handlers = append(p.handlers, h)
	return nil
}

// Resolve returns the first handler whose check passes for ev, or nil when
// none does. A check failure stops the scan.
func (p *Plugin) Resolve(ctx context.Context, ev event.Event, perms session.PermissionLookup) (*handler.Handler, error) {
	for i := range p.handlers {
		ok, err := p.handlers[i].Check(ctx, ev, perms)
		if err != nil {
			return nil, fmt.Errorf("plugin %q handler %d: %w", p.name, i, err)
		}
		if ok {
			return &p.handlers[i], nil
		}
	}
	return nil, nil
}

func (p *Plugin) Name() string     { return p.name }
func (p *Plugin) FilePath() string { return p.filePath }

// Handlers returns a copy of the handler list.
func (p *Plugin) Handlers() []handler.Handler {
	return slices.Clone(p.handlers)
}
