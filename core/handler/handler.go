// Package handler pairs filters with a callback and links handlers into
// And/Or chains.
package handler

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/filter"
	"github.com/jdelaire/plugwire/core/session"
)

var (
	// ErrNoKinds is returned by New when no event kind is accepted.
	ErrNoKinds = errors.New("handler accepts no event kinds")

	// ErrNoCallback is returned when running a handler that has no callback.
	ErrNoCallback = errors.New("handler has no callback")
)

// Callback processes one dispatched event.
type Callback interface {
	Handle(ctx context.Context, sess session.Session, data *event.Data) error
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(ctx context.Context, sess session.Session, data *event.Data) error

func (f CallbackFunc) Handle(ctx context.Context, sess session.Session, data *event.Data) error {
	return f(ctx, sess, data)
}

// Op is the combinator linking a handler to the next one in its chain.
type Op int

const (
	OpAnd Op = iota + 1
	OpOr
)

func (o Op) String() string {
	switch o {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	default:
		return "none"
	}
}

type link struct {
	op   Op
	next Handler
}

// Handler accepts a set of event kinds, filters them and runs a callback.
// Handlers are values; And and Or return modified copies, so a chain can
// never contain a cycle.
type Handler struct {
	name     string
	kinds    []event.Kind
	filters  []filter.Filter
	callback Callback
	link     *link
}

// New builds a handler. cb may be nil for handlers that are only used as the
// right-hand side of And or Or.
func New(kinds []event.Kind, cb Callback, filters ...filter.Filter) (Handler, error) {
	if len(kinds) == 0 {
		return Handler{}, ErrNoKinds
	}
	for _, k := range kinds {
		if !k.Valid() {
			return Handler{}, fmt.Errorf("new handler: invalid event kind %d", int(k))
		}
	}

	return Handler{
		kinds:    slices.Clone(kinds),
		filters:  slices.Clone(filters),
		callback: cb,
	}, nil
}

// Must is like New but panics on error.
func Must(kinds []event.Kind, cb Callback, filters ...filter.Filter) Handler {
	h, err := New(kinds, cb, filters...)
	if err != nil {
		panic(err)
	}
	return h
}

// Named returns a copy of h labelled name.
func (h Handler) Named(name string) Handler {
	h.name = name
	return h
}

// And returns a copy of h that matches only when one of its own filters
// matches and next matches too. Any previous link of h is replaced.
func (h Handler) And(next Handler) Handler {
	h.link = &link{op: OpAnd, next: next}
	return h
}

// Or returns a copy of h that defers to next when the event kind is not one
// h accepts. Any previous link of h is replaced.
func (h Handler) Or(next Handler) Handler {
	h.link = &link{op: OpOr, next: next}
	return h
}

// Name returns the label set with Named.
func (h Handler) Name() string { return h.name }

// Kinds returns a copy of the accepted kinds.
func (h Handler) Kinds() []event.Kind { return slices.Clone(h.kinds) }

// Filters returns a copy of the filter list.
func (h Handler) Filters() []filter.Filter { return slices.Clone(h.filters) }

// HasCallback reports whether Run has something to invoke.
func (h Handler) HasCallback() bool { return h.callback != nil }

// Link returns the combinator and the linked handler, if any.
func (h Handler) Link() (Op, *Handler, bool) {
	if h.link == nil {
		return 0, nil, false
	}
	next := h.link.next
	return h.link.op, &next, true
}

// Accepts reports whether kind passes the handler's type gate.
func (h Handler) Accepts(kind event.Kind) bool {
	return slices.Contains(h.kinds, kind)
}

// Check reports whether ev selects this handler.
//
// When the type gate fails the result comes from an Or-linked handler, or is
// false. When it passes, the filters are tried in order and the first match
// decides; with an And link a match only counts if the linked handler also
// matches, and the link is retried for every matching filter.
func (h Handler) Check(ctx context.Context, ev event.Event, perms session.PermissionLookup) (bool, error) {
	if !h.Accepts(ev.Kind()) {
		if h.link != nil && h.link.op == OpOr {
			return h.link.next.Check(ctx, ev, perms)
		}
		return false, nil
	}

	for _, f := range h.filters {
		ok, err := f.Evaluate(ctx, ev, perms)
		if err != nil {
			return false, fmt.Errorf("filter %s: %w", f, err)
		}
		if !ok {
			continue
		}
		if h.link == nil || h.link.op != OpAnd {
			return true, nil
		}

		matched, err := h.link.next.Check(ctx, ev, perms)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}

// Run invokes the callback.
func (h Handler) Run(ctx context.Context, sess session.Session, data *event.Data) error {
	if h.callback == nil {
		return ErrNoCallback
	}
	return h.callback.Handle(ctx, sess, data)
}
