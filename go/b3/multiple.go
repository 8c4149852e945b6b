package b3

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// MultipleHeader propagates span context as one header per field.
type MultipleHeader struct{}

var _ propagation.TextMapPropagator = MultipleHeader{}

// Fields returns the keys Inject writes. The parent span id and debug flag
// are read on extraction but never written.
func (MultipleHeader) Fields() []string {
	return []string{TraceIDHeader, SpanIDHeader, SampledHeader}
}

// Inject writes the span context held by ctx into carrier. Nothing is
// written when that span context is invalid.
func (MultipleHeader) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(TraceIDHeader, sc.TraceID().String())
	carrier.Set(SpanIDHeader, sc.SpanID().String())
	carrier.Set(SampledHeader, sampledBit(sc.IsSampled()))
}

// Extract returns ctx carrying the remote span context found in carrier,
// or ctx unchanged if the headers do not hold a valid one.
func (MultipleHeader) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	sc, err := DecodeMultiple(carrier)
	if err != nil {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// DecodeMultiple reads the multiple-header encoding from carrier.
//
// A missing x-b3-sampled header means sampled; a present but empty one
// means not sampled. x-b3-flags: 1 forces sampling. A parent span id, when
// present, must be valid but is otherwise discarded.
func DecodeMultiple(carrier propagation.TextMapCarrier) (trace.SpanContext, error) {
	traceID, ok := lookup(carrier, TraceIDHeader)
	if !ok {
		traceID = invalidTraceID
	}
	spanID, ok := lookup(carrier, SpanIDHeader)
	if !ok {
		spanID = invalidSpanID
	}
	sampled, ok := lookup(carrier, SampledHeader)
	if !ok {
		sampled = "1"
	}
	debug, _ := lookup(carrier, DebugFlagHeader)

	if parent, ok := lookup(carrier, ParentSpanIDHeader); ok && !ValidSpanID(parent) {
		return trace.SpanContext{}, ErrInvalidParentSpanID
	}
	if !ValidSpanID(spanID) {
		return trace.SpanContext{}, ErrInvalidSpanID
	}
	if !ValidTraceID(traceID) {
		return trace.SpanContext{}, ErrInvalidTraceID
	}

	return remoteSpanContext(traceID, spanID, sampled == "1" || debug == "1")
}
