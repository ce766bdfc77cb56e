package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerTraceparent = "traceparent"
	headerTracestate  = "tracestate"
)

// TraceContextStrings captures the W3C headers of ctx so they can be stored with an
// outbox row. Both are empty when ctx carries no valid span.
func TraceContextStrings(ctx context.Context) (traceparent string, tracestate string) {
	if !trace.SpanContextFromContext(ctx).IsValid() {
		return "", ""
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get(headerTraceparent), carrier.Get(headerTracestate)
}

// ContextWithTraceContext restores a stored trace so the relay continues the
// booking request's trace.
func ContextWithTraceContext(ctx context.Context, traceparent string, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{headerTraceparent: traceparent}
	if tracestate != "" {
		carrier.Set(headerTracestate, tracestate)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
