// Package telemetry installs the OpenTelemetry providers used by a zipsync
// run. The reconcile engine records one span per run and counters for
// campaigns and criterion operations.
//
// Telemetry is off unless telemetry.enabled (ZIPSYNC_OTEL_ENABLED) is set;
// when off every instrument is a no-op. When on:
//
//   - spans are exported only to the stdout writer, and only with
//     telemetry.stdout (ZIPSYNC_OTEL_STDOUT). A run produces a single span
//     tree, so it is not shipped to a collector.
//   - metrics go to the stdout writer with telemetry.stdout, and to an
//     OTLP/HTTP collector when OTEL_EXPORTER_OTLP_METRICS_ENDPOINT or
//     OTEL_EXPORTER_OTLP_ENDPOINT is set.
//
// OTEL_SERVICE_NAME overrides the service name.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/multierr"
)

const instrumentationScope = "github.com/zipsync/zipsync"

// Options selects which providers Init installs.
type Options struct {
	Enabled     bool
	Stdout      bool
	ServiceName string
	Version     string

	// Writer receives stdout exporter output. Defaults to os.Stderr.
	Writer io.Writer
}

var (
	mu       sync.Mutex
	shutdown []func(context.Context) error
)

// Init installs the global tracer and meter providers for one process.
func Init(ctx context.Context, opts Options) error {
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), opts.ServiceName, "zipsync")),
			semconv.ServiceVersionKey.String(opts.Version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	spans, err := spanExporters(opts)
	if err != nil {
		return fmt.Errorf("telemetry: span exporter: %w", err)
	}
	readers, err := metricReaders(ctx, opts)
	if err != nil {
		return fmt.Errorf("telemetry: metric reader: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	for _, exp := range spans {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(mpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	mu.Lock()
	shutdown = append(shutdown, tp.Shutdown, mp.Shutdown)
	mu.Unlock()
	return nil
}

// Tracer returns a tracer for name, or for the zipsync scope when empty.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter for name, or for the zipsync scope when empty.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes and stops every provider installed by Init. Calling it
// again is a no-op.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fns := shutdown
	shutdown = nil
	mu.Unlock()

	var err error
	for _, fn := range fns {
		err = multierr.Append(err, fn(ctx))
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
