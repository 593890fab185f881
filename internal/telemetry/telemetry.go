// Package telemetry installs the OpenTelemetry providers.
//
// Telemetry is off by default: Init then installs no-op providers. When
// enabled, spans and metrics are written by the stdout exporters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const metricInterval = 15 * time.Second

// Options selects the exporters.
type Options struct {
	Enabled bool
	// Stdout adds the metric exporter and pretty-prints spans. Spans are
	// always exported when telemetry is enabled.
	Stdout bool
	// Writer receives exporter output. Defaults to os.Stderr.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the providers installed by Init.
type ShutdownFunc func(context.Context) error

// Init configures the global providers.
func Init(ctx context.Context, serviceName, version string, opts Options) (ShutdownFunc, error) {
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := buildTraceProvider(res, opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace provider: %w", err)
	}
	mp, err := buildMetricProvider(res, opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric provider: %w", err)
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func buildTraceProvider(res *resource.Resource, opts Options) (*sdktrace.TracerProvider, error) {
	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(opts.Writer)}
	if opts.Stdout {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exp, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
	), nil
}

func buildMetricProvider(res *resource.Resource, opts Options) (*sdkmetric.MeterProvider, error) {
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return nil, err
		}
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(metricInterval)),
		))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}
