package b3

import (
	"go.opentelemetry.io/otel/trace"
)

// Stand-ins for ids missing from the carrier. Both fail validation.
const (
	invalidTraceID = "00000000000000000000000000000000"
	invalidSpanID  = "0000000000000000"
)

// ValidTraceID reports whether s is 32 lower-case hex characters that do
// not decode to all zeros.
func ValidTraceID(s string) bool {
	_, err := trace.TraceIDFromHex(s)
	return err == nil
}

// ValidSpanID reports whether s is 16 lower-case hex characters that do
// not decode to all zeros.
func ValidSpanID(s string) bool {
	_, err := trace.SpanIDFromHex(s)
	return err == nil
}

// remoteSpanContext builds the span context for ids that already passed
// validation.
func remoteSpanContext(traceID, spanID string, sampled bool) (trace.SpanContext, error) {
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, ErrInvalidTraceID
	}
	sid, err := trace.SpanIDFromHex(spanID)
	if err != nil {
		return trace.SpanContext{}, ErrInvalidSpanID
	}
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		Remote:     true,
	}), nil
}
