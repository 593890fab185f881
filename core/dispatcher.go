// Package core runs the dispatch loop that feeds session events to plugins.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/jdelaire/plugwire/core/event"
	"github.com/jdelaire/plugwire/core/filter"
	"github.com/jdelaire/plugwire/core/handler"
	"github.com/jdelaire/plugwire/core/plugin"
	"github.com/jdelaire/plugwire/core/session"
)

// ErrCallbackPanic wraps a panic recovered from a handler callback.
var ErrCallbackPanic = errors.New("handler callback panicked")

// Options controls how the dispatcher schedules work.
type Options struct {
	// MaxInFlight bounds the number of concurrent dispatches. Zero means
	// unbounded; when the bound is reached intake waits for a free slot.
	MaxInFlight int64

	// Drain makes Serve wait for in-flight dispatches before returning,
	// at most DrainTimeout when it is positive. Without Drain, in-flight
	// dispatches are left running on shutdown.
	Drain        bool
	DrainTimeout time.Duration

	// Providers default to the global OpenTelemetry providers.
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Dispatcher selects at most one handler per event and invokes it.
type Dispatcher struct {
	plugins []*plugin.Plugin
	logger  *slog.Logger
	opts    Options
	sem     *semaphore.Weighted
	metrics *dispatchMetrics
}

// NewDispatcher creates a Dispatcher over plugins, tried in order.
func NewDispatcher(plugins []*plugin.Plugin, logger *slog.Logger, opts Options) *Dispatcher {
	d := &Dispatcher{
		plugins: append([]*plugin.Plugin(nil), plugins...),
		logger:  logger,
		opts:    opts,
		metrics: newDispatchMetrics(opts.MeterProvider, opts.TracerProvider),
	}
	if opts.MaxInFlight > 0 {
		d.sem = semaphore.NewWeighted(opts.MaxInFlight)
	}
	return d
}

// Serve pulls events from sess until ctx is cancelled or the session is
// closed, both of which return nil. Any other session error ends the loop
// and is returned. Each event is dispatched on its own goroutine.
func (d *Dispatcher) Serve(ctx context.Context, sess session.Session) error {
	var wg sync.WaitGroup
	defer d.drain(&wg)

	// Dispatches outlive the intake loop; they are never cancelled by it.
	workCtx := context.WithoutCancel(ctx)

	for {
		ev, err := sess.NextEvent(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, session.ErrClosed) {
				d.logger.Info("dispatcher stopped")
				return nil
			}
			return fmt.Errorf("next event: %w", err)
		}
		if !ev.Valid() {
			d.logger.Warn("skipping invalid event", "type", ev.Type())
			continue
		}

		if d.sem != nil {
			if err := d.sem.Acquire(ctx, 1); err != nil {
				d.logger.Info("dispatcher stopped")
				return nil
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.sem != nil {
				defer d.sem.Release(1)
			}
			d.dispatchLogged(workCtx, sess, ev)
		}()
	}
}

func (d *Dispatcher) drain(wg *sync.WaitGroup) {
	if !d.opts.Drain {
		return
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var timeout <-chan time.Time
	if d.opts.DrainTimeout > 0 {
		t := time.NewTimer(d.opts.DrainTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-done:
	case <-timeout:
		d.logger.Warn("drain timed out", "timeout", d.opts.DrainTimeout)
	}
}

func (d *Dispatcher) dispatchLogged(ctx context.Context, sess session.Session, ev event.Event) {
	if _, err := d.Dispatch(ctx, sess, ev); err != nil {
		d.logger.Error("dispatch failed", "kind", ev.Kind(), "error", err)
	}
}

// Dispatch resolves ev against the plugins in order and runs the first
// matching handler once. It reports whether a handler was selected. An
// error comes either from resolution, in which case nothing ran, or from
// the callback itself.
func (d *Dispatcher) Dispatch(ctx context.Context, sess session.Session, ev event.Event) (matched bool, err error) {
	id := uuid.NewString()
	kind := ev.Kind().String()

	ctx, span, start := d.metrics.start(ctx, id, kind)
	var pluginName string
	defer func() {
		d.metrics.done(ctx, span, start, kind, pluginName, matched, err)
	}()

	if !ev.Valid() {
		return false, fmt.Errorf("dispatch %s: invalid event", id)
	}

	for _, p := range d.plugins {
		h, err := p.Resolve(ctx, ev, sess)
		if err != nil {
			return false, fmt.Errorf("dispatch %s: %w", id, err)
		}
		if h == nil {
			continue
		}

		pluginName = p.Name()
		data, err := event.NewData(id, ev)
		if err != nil {
			return false, fmt.Errorf("dispatch %s: %w", id, err)
		}

		d.logger.Debug("dispatching", "dispatch_id", id, "plugin", p.Name(), "handler", h.Name(), "kind", kind)
		if err := invoke(ctx, sess, h, data); err != nil {
			return true, fmt.Errorf("dispatch %s: plugin %q handler %q: %w", id, p.Name(), h.Name(), err)
		}
		return true, nil
	}
	return false, nil
}

func invoke(ctx context.Context, sess session.Session, h *handler.Handler, data *event.Data) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	return h.Run(ctx, sess, data)
}

// Run resolves the bot identity, builds the plugins and serves sess until
// ctx is cancelled or the session ends.
func Run(ctx context.Context, sess session.Session, builders []plugin.Builder, prefixes []string, logger *slog.Logger, opts Options) error {
	self, err := sess.Self(ctx)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	settings, err := filter.NewSettings(self.Username, prefixes)
	if err != nil {
		return err
	}

	reg := plugin.NewRegistry()
	if err := reg.Build(settings, builders...); err != nil {
		return err
	}

	logger.Info("dispatcher started", "username", settings.Username(), "plugins", reg.Len())
	return NewDispatcher(reg.Plugins(), logger, opts).Serve(ctx, sess)
}
