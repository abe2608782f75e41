package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	stdoutInterval = 15 * time.Second
	otlpInterval   = 30 * time.Second
)

// spanExporters returns the stdout exporter when requested and nothing
// otherwise; spans are then recorded but dropped.
func spanExporters(opts Options) ([]sdktrace.SpanExporter, error) {
	if !opts.Stdout {
		return nil, nil
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(opts.Writer))
	if err != nil {
		return nil, err
	}
	return []sdktrace.SpanExporter{exp}, nil
}

func metricReaders(ctx context.Context, opts Options) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if opts.Stdout {
		exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(opts.Writer))
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutInterval)))
	}
	if endpoint := otlpEndpoint(); endpoint != "" {
		exp, err := otlpMetricExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp %s: %w", endpoint, err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpInterval)))
	}
	return readers, nil
}

// otlpEndpoint prefers the metrics-specific variable.
func otlpEndpoint() string {
	return firstNonEmpty(
		os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	)
}

// otlpMetricExporter accepts a full URL, or a host:port reached over plain
// HTTP.
func otlpMetricExporter(ctx context.Context, endpoint string) (sdkmetric.Exporter, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(endpoint))
	}
	return otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(endpoint),
		otlpmetrichttp.WithInsecure(),
	)
}
