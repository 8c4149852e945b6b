package b3

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// maxSegments caps the split of the single header: trace, span, sampling
// state and parent span id.
const maxSegments = 4

// SingleHeader propagates span context as one dash-joined b3 header.
type SingleHeader struct{}

var _ propagation.TextMapPropagator = SingleHeader{}

// Fields returns the single key this codec reads and writes.
func (SingleHeader) Fields() []string {
	return []string{SingleHeaderKey}
}

// Inject writes {TraceId}-{SpanId}-{0|1} into carrier. Nothing is written
// when the span context held by ctx is invalid.
func (SingleHeader) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return
	}
	carrier.Set(SingleHeaderKey, Format(sc))
}

// Extract returns ctx carrying the remote span context found in carrier,
// or ctx unchanged if the b3 header is absent or malformed.
func (SingleHeader) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	sc, err := DecodeSingle(carrier)
	if err != nil {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

// Format renders sc as a single-header value. It does not check validity.
func Format(sc trace.SpanContext) string {
	return strings.Join([]string{
		sc.TraceID().String(),
		sc.SpanID().String(),
		sampledBit(sc.IsSampled()),
	}, "-")
}

// singleFields is a b3 header value split by arity, with absent parts left
// at values that fail validation.
type singleFields struct {
	traceID   string
	spanID    string
	sampling  string
	parentID  string
	hasParent bool
}

func splitSingle(value string) singleFields {
	f := singleFields{
		traceID:  invalidTraceID,
		spanID:   invalidSpanID,
		sampling: "1",
	}
	parts := strings.SplitN(value, "-", maxSegments)
	switch len(parts) {
	case 1:
		// A sampling state alone cannot establish a trace.
		f.sampling = parts[0]
	case 2:
		f.traceID, f.spanID = parts[0], parts[1]
	case 3:
		f.traceID, f.spanID, f.sampling = parts[0], parts[1], parts[2]
	case 4:
		f.traceID, f.spanID, f.sampling = parts[0], parts[1], parts[2]
		f.parentID, f.hasParent = parts[3], true
	}
	return f
}

// DecodeSingle reads the single-header encoding from carrier. The value may
// have one to four segments; a sampling state of "1" or "d" (debug) means
// sampled, and a parent span id, when present, must be valid.
func DecodeSingle(carrier propagation.TextMapCarrier) (trace.SpanContext, error) {
	value, ok := lookup(carrier, SingleHeaderKey)
	if !ok {
		return trace.SpanContext{}, ErrMissingHeader
	}

	f := splitSingle(value)
	if f.hasParent && !ValidSpanID(f.parentID) {
		return trace.SpanContext{}, ErrInvalidParentSpanID
	}
	if !ValidSpanID(f.spanID) {
		return trace.SpanContext{}, ErrInvalidSpanID
	}
	if !ValidTraceID(f.traceID) {
		return trace.SpanContext{}, ErrInvalidTraceID
	}

	return remoteSpanContext(f.traceID, f.spanID, f.sampling == "1" || f.sampling == "d")
}
