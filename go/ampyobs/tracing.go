package ampyobs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

// MessageAttrs captures stable, low-cardinality attributes for message spans.
type MessageAttrs struct {
	Topic        string
	MessageID    string
	PartitionKey string
	Encoding     b3.Encoding // B3 encoding used for the message headers
}

func (a MessageAttrs) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("messaging.destination.name", a.Topic),
		attribute.String("messaging.message.id", a.MessageID),
		attribute.String("partition_key", a.PartitionKey),
		attribute.String("b3.encoding", string(a.encoding())),
	}
}

func (a MessageAttrs) encoding() b3.Encoding {
	if a.Encoding == "" {
		return b3.EncodingSingle
	}
	return a.Encoding
}

// StartSpan creates a span with a conventional name and kind.
func StartSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := otel.Tracer(meterName)
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	}
	return tr.Start(ctx, name, opts...)
}

// StartPublishSpan starts a `message.publish` producer span and writes its
// context into headers as B3.
func StartPublishSpan(ctx context.Context, a MessageAttrs, headers map[string]string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, "message.publish", trace.SpanKindProducer, a.attributes()...)
	InjectB3(ctx, headers, a.encoding())
	return ctx, span
}

// StartConsumeSpan extracts B3 context from headers and starts
// `message.consume` as a child of the upstream span, linked to it. Headers
// without a usable B3 context leave the span under parent, with no link.
func StartConsumeSpan(parent context.Context, headers map[string]string, a MessageAttrs) (context.Context, trace.Span) {
	remoteCtx := ExtractB3(parent, headers, a.encoding())

	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(a.attributes()...),
	}
	if link := trace.LinkFromContext(remoteCtx); link.SpanContext.IsRemote() {
		opts = append(opts, trace.WithLinks(link))
	}

	tr := otel.Tracer(meterName)
	return tr.Start(remoteCtx, "message.consume", opts...)
}
