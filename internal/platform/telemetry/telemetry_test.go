package telemetry

import (
	"context"
	"testing"

	"github.com/ogurasousui/gym-appointments/internal/platform/config"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	if _, err := Setup(context.Background(), config.TelemetryConfig{}); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	traceparent, _ := TraceContextStrings(ctx)
	if traceparent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", traceparent)
	}

	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), traceparent, ""))
	if restored.TraceID() != traceID || !restored.IsRemote() {
		t.Fatalf("trace context not restored: %+v", restored)
	}
}

func TestContextWithTraceContext_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if got := ContextWithTraceContext(ctx, "", ""); got != ctx {
		t.Fatalf("expected the same context when nothing is stored")
	}
}
