package ampyobs

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

const (
	HeaderB3           = b3.SingleHeaderKey
	HeaderB3TraceID    = b3.TraceIDHeader
	HeaderB3SpanID     = b3.SpanIDHeader
	HeaderB3Sampled    = b3.SampledHeader
	HeaderB3ParentSpan = b3.ParentSpanIDHeader
	HeaderB3Flags      = b3.DebugFlagHeader
)

// InjectTrace injects trace context into key/value headers using the
// propagator installed by Init.
func InjectTrace(ctx context.Context, headers map[string]string) {
	otel.GetTextMapPropagator().Inject(ctx, b3.MapCarrier(headers))
}

// ExtractTrace extracts trace context from headers using the propagator
// installed by Init and returns a child context.
func ExtractTrace(parent context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(parent, b3.MapCarrier(headers))
}

// InjectB3 writes the span context of ctx into headers with one B3 encoding
// and records it. Invalid span contexts write nothing and are not counted.
func InjectB3(ctx context.Context, headers map[string]string, enc b3.Encoding) {
	if headers == nil || !trace.SpanContextFromContext(ctx).IsValid() {
		return
	}
	prop := b3.Propagator(enc)
	prop.Inject(ctx, b3.MapCarrier(headers))

	size := 0
	for _, k := range prop.Fields() {
		size += len(headers[k])
	}
	if size > 0 {
		B3InjectAdd(ctx, string(enc), size)
	}
}

// ExtractB3 decodes one B3 encoding from headers. On rejection parent is
// returned unchanged and the reason is logged at debug level.
func ExtractB3(parent context.Context, headers map[string]string, enc b3.Encoding) context.Context {
	carrier := b3.MapCarrier(headers)

	var (
		sc  trace.SpanContext
		err error
	)
	if enc == b3.EncodingMultiple {
		sc, err = b3.DecodeMultiple(carrier)
		if err != nil && !hasAny(headers, b3.TraceIDHeader, b3.SpanIDHeader) {
			err = b3.ErrMissingHeader
		}
	} else {
		sc, err = b3.DecodeSingle(carrier)
	}

	outcome, reason := classify(err)
	B3ExtractAdd(parent, string(enc), outcome, reason)
	if err != nil {
		if outcome == OutcomeReject {
			C(parent).Debug("b3 extract rejected",
				slog.String("encoding", string(enc)),
				slog.String("reason", reason),
			)
		}
		return parent
	}
	return trace.ContextWithRemoteSpanContext(parent, sc)
}

// classify maps a decode error onto the outcome and reason labels.
func classify(err error) (outcome, reason string) {
	switch {
	case err == nil:
		return OutcomeOK, ""
	case errors.Is(err, b3.ErrMissingHeader):
		return OutcomeAbsent, ""
	case errors.Is(err, b3.ErrInvalidTraceID):
		return OutcomeReject, "invalid_trace_id"
	case errors.Is(err, b3.ErrInvalidSpanID):
		return OutcomeReject, "invalid_span_id"
	case errors.Is(err, b3.ErrInvalidParentSpanID):
		return OutcomeReject, "invalid_parent_span_id"
	default:
		return OutcomeReject, "unknown"
	}
}

func hasAny(headers map[string]string, keys ...string) bool {
	for _, k := range keys {
		if _, ok := headers[k]; ok {
			return true
		}
	}
	return false
}
