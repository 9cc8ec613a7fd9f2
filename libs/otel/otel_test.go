package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextStringsRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9},
		SpanID:     trace.SpanID{1, 1, 1, 1, 1, 1, 1, 1},
		TraceFlags: trace.FlagsSampled,
	})
	tp, ts := TraceContextStrings(trace.ContextWithSpanContext(context.Background(), sc))
	if tp == "" {
		t.Fatalf("expected a traceparent")
	}
	got := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), tp, ts))
	if got.TraceID() != sc.TraceID() || !got.IsRemote() {
		t.Fatalf("unexpected span context %+v", got)
	}
}

func TestContextWithTraceContext_Empty(t *testing.T) {
	ctx := context.Background()
	if got := ContextWithTraceContext(ctx, "", ""); got != ctx {
		t.Fatalf("empty trace context must return ctx unchanged")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	cfg := ConfigFromEnv("scheduling-service")
	if cfg.Enabled {
		t.Fatalf("expected tracing disabled")
	}
	if cfg.SampleRatio != 1 {
		t.Fatalf("out of range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
}
