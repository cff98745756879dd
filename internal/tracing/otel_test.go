package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitOpenTelemetryExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	if err := InitOpenTelemetry(context.Background(), Options{ServiceName: "bglane-test", Exporter: exp}); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	defer ShutdownOpenTelemetry(context.Background())

	_, span := StartSpan(context.Background(), "bglane.test", "lanes.submit")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 exported span, got %d", len(spans))
	}
	if spans[0].Name != "lanes.submit" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
}

func TestInitOpenTelemetryAfterShutdown(t *testing.T) {
	first := tracetest.NewInMemoryExporter()
	if err := InitOpenTelemetry(context.Background(), Options{Exporter: first}); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	if err := ShutdownOpenTelemetry(context.Background()); err != nil {
		t.Fatalf("ShutdownOpenTelemetry failed: %v", err)
	}

	_, span := StartSpan(context.Background(), "bglane.test", "between")
	if span.IsRecording() {
		t.Error("span recorded with no provider installed")
	}
	span.End()

	second := tracetest.NewInMemoryExporter()
	if err := InitOpenTelemetry(context.Background(), Options{Exporter: second}); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}
	defer ShutdownOpenTelemetry(context.Background())

	_, span = StartSpan(context.Background(), "bglane.test", "after")
	if !span.IsRecording() {
		t.Error("span not recorded after re-initializing")
	}
	span.End()

	if got := len(second.GetSpans()); got != 1 {
		t.Errorf("expected 1 span on the new exporter, got %d", got)
	}
}

func TestShutdownWithoutInit(t *testing.T) {
	if err := ShutdownOpenTelemetry(context.Background()); err != nil {
		t.Errorf("ShutdownOpenTelemetry without a provider: %v", err)
	}
}
