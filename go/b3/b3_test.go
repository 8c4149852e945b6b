package b3

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceIDStr = "ff000000000000000000000000000041"
	spanIDStr  = "ff00000000000041"
)

type ctxKey struct{}

// baseCtx carries a marker so tests can check Extract hands it back as is.
func baseCtx() context.Context {
	return context.WithValue(context.Background(), ctxKey{}, "base")
}

func spanContext(t *testing.T, sampled, remote bool) trace.SpanContext {
	t.Helper()
	tid, err := trace.TraceIDFromHex(traceIDStr)
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex(spanIDStr)
	require.NoError(t, err)
	var flags trace.TraceFlags
	if sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		Remote:     remote,
	})
}

func TestValidIDs(t *testing.T) {
	assert.True(t, ValidTraceID(traceIDStr))
	assert.True(t, ValidSpanID(spanIDStr))

	assert.False(t, ValidTraceID(invalidTraceID))
	assert.False(t, ValidSpanID(invalidSpanID))
	assert.False(t, ValidTraceID(""))
	assert.False(t, ValidTraceID(traceIDStr+"00"))
	assert.False(t, ValidTraceID("abcdefghijklmnopabcdefghijklmnop"))
	assert.False(t, ValidSpanID("abcdefghijklmnop"))
	assert.False(t, ValidSpanID(spanIDStr[:15]))
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{in: "b3", want: EncodingSingle},
		{in: "", want: EncodingSingle},
		{in: " B3Multi ", want: EncodingMultiple},
		{in: "tracecontext", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropagatorSelectsCodec(t *testing.T) {
	assert.Equal(t, []string{SingleHeaderKey}, Propagator(EncodingSingle).Fields())
	assert.Equal(t, []string{TraceIDHeader, SpanIDHeader, SampledHeader}, Propagator(EncodingMultiple).Fields())
}

func TestLookupDistinguishesEmptyFromAbsent(t *testing.T) {
	tests := []struct {
		name    string
		carrier propagation.TextMapCarrier
		key     string
		want    string
		present bool
	}{
		{name: "b3 map present empty", carrier: MapCarrier{"k": ""}, key: "k", present: true},
		{name: "b3 map absent", carrier: MapCarrier{}, key: "k"},
		{name: "otel map present empty", carrier: propagation.MapCarrier{"k": ""}, key: "k", present: true},
		{name: "otel map value", carrier: propagation.MapCarrier{"k": "v"}, key: "k", want: "v", present: true},
		{name: "header present empty", carrier: propagation.HeaderCarrier(http.Header{"X-B3-Sampled": {""}}), key: SampledHeader, present: true},
		{name: "header absent", carrier: propagation.HeaderCarrier(http.Header{}), key: SampledHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := lookup(tt.carrier, tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.present, ok)
		})
	}
}

func TestRoundTripBothEncodings(t *testing.T) {
	for _, prop := range []propagation.TextMapPropagator{Single(), Multiple()} {
		for _, sampled := range []bool{true, false} {
			ctx := trace.ContextWithSpanContext(context.Background(), spanContext(t, sampled, false))
			carrier := MapCarrier{}
			prop.Inject(ctx, carrier)

			got := trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
			assert.Equal(t, spanContext(t, sampled, true), got)
		}
	}
}

func TestConcurrentUse(t *testing.T) {
	carrier := MapCarrier{SingleHeaderKey: traceIDStr + "-" + spanIDStr + "-1"}
	done := make(chan trace.SpanContext)
	for i := 0; i < 8; i++ {
		go func() {
			done <- trace.SpanContextFromContext(Single().Extract(context.Background(), carrier))
		}()
	}
	for i := 0; i < 8; i++ {
		assert.True(t, (<-done).IsValid())
	}
}
