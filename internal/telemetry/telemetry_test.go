package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	if err := Init(context.Background(), Options{}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, ok := otel.GetTracerProvider().(tracenoop.TracerProvider); !ok {
		t.Errorf("tracer provider = %T, want noop", otel.GetTracerProvider())
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInitStdoutExportsSpansAndMetrics(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Cleanup(func() { _ = Init(context.Background(), Options{}) })

	var buf bytes.Buffer
	err := Init(context.Background(), Options{
		Enabled:     true,
		Stdout:      true,
		ServiceName: "zipsync-test",
		Version:     "0.0.0",
		Writer:      &buf,
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, span := Tracer("").Start(context.Background(), "test.span")
	span.End()
	counter, err := Meter("").Int64Counter("test.counter")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(ctx, 3)

	if err := Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"test.span", "test.counter", "zipsync-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("exporter output missing %q", want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("firstNonEmpty() = %q, want b", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("firstNonEmpty() = %q, want empty", got)
	}
}

func TestOTLPEndpointPrefersMetricsVariable(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	if got := otlpEndpoint(); got != "collector:4318" {
		t.Errorf("otlpEndpoint() = %q, want collector:4318", got)
	}

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "https://metrics.example/v1/metrics")
	if got := otlpEndpoint(); got != "https://metrics.example/v1/metrics" {
		t.Errorf("otlpEndpoint() = %q, want the metrics endpoint", got)
	}
}

func TestSpanExportersStdoutOnly(t *testing.T) {
	exps, err := spanExporters(Options{Enabled: true})
	if err != nil {
		t.Fatalf("spanExporters() error = %v", err)
	}
	if len(exps) != 0 {
		t.Errorf("spanExporters() without stdout = %d exporters, want 0", len(exps))
	}

	var buf bytes.Buffer
	exps, err = spanExporters(Options{Enabled: true, Stdout: true, Writer: &buf})
	if err != nil {
		t.Fatalf("spanExporters() error = %v", err)
	}
	if len(exps) != 1 {
		t.Errorf("spanExporters() with stdout = %d exporters, want 1", len(exps))
	}
}
