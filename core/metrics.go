package core

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/jdelaire/plugwire/core"

// dispatchMetrics holds the instruments recorded for every dispatch.
type dispatchMetrics struct {
	tracer  trace.Tracer
	events  metric.Int64Counter
	matched metric.Int64Counter
	errs    metric.Int64Counter
	dur     metric.Float64Histogram
}

func newDispatchMetrics(mp metric.MeterProvider, tp trace.TracerProvider) *dispatchMetrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	m := mp.Meter(scopeName)
	events, _ := m.Int64Counter("plugwire.dispatch.events",
		metric.WithDescription("Events received by the dispatcher"),
	)
	matched, _ := m.Int64Counter("plugwire.dispatch.matched",
		metric.WithDescription("Events that selected a handler"),
	)
	errs, _ := m.Int64Counter("plugwire.dispatch.errors",
		metric.WithDescription("Dispatches that failed in resolution or in the callback"),
	)
	dur, _ := m.Float64Histogram("plugwire.dispatch.duration",
		metric.WithDescription("Dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &dispatchMetrics{
		tracer:  tp.Tracer(scopeName),
		events:  events,
		matched: matched,
		errs:    errs,
		dur:     dur,
	}
}

// start opens the dispatch span and counts the event.
func (m *dispatchMetrics) start(ctx context.Context, id, kind string) (context.Context, trace.Span, time.Time) {
	attrs := []attribute.KeyValue{attribute.String("event.kind", kind)}
	ctx, span := m.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(append(attrs, attribute.String("dispatch.id", id))...),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	m.events.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

// done ends the span and records the outcome.
func (m *dispatchMetrics) done(ctx context.Context, span trace.Span, start time.Time, kind, pluginName string, matched bool, err error) {
	attrs := []attribute.KeyValue{attribute.String("event.kind", kind)}
	if matched {
		m.matched.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("plugin", pluginName))...))
		span.SetAttributes(attribute.String("plugin", pluginName))
	}
	m.dur.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}
