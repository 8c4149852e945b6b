// Package b3 implements the Zipkin B3 trace-context propagation format in
// both of its encodings:
//
//	Single header:
//	  b3: {TraceId}-{SpanId}-{SamplingState}-{ParentSpanId}
//	Multiple headers:
//	  x-b3-traceid:      {TraceId}
//	  x-b3-spanid:       {SpanId}
//	  x-b3-sampled:      {SamplingState}
//	  x-b3-parentspanid: {ParentSpanId}
//	  x-b3-flags:        {DebugFlag}
//
// Both codecs implement propagation.TextMapPropagator. Extraction never
// fails loudly: malformed input leaves the caller's context untouched.
package b3

import (
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/propagation"
)

const (
	TraceIDHeader      = "x-b3-traceid"
	SpanIDHeader       = "x-b3-spanid"
	SampledHeader      = "x-b3-sampled"
	ParentSpanIDHeader = "x-b3-parentspanid"
	DebugFlagHeader    = "x-b3-flags"

	SingleHeaderKey = "b3"
)

// Decode errors. Extract swallows them; DecodeSingle and DecodeMultiple
// return them so callers can tell why a carrier was rejected.
var (
	ErrMissingHeader       = errors.New("b3: header not present")
	ErrInvalidTraceID      = errors.New("b3: invalid trace id")
	ErrInvalidSpanID       = errors.New("b3: invalid span id")
	ErrInvalidParentSpanID = errors.New("b3: invalid parent span id")
)

// Encoding names a B3 wire encoding. Values match OTEL_PROPAGATORS.
type Encoding string

const (
	EncodingSingle   Encoding = "b3"
	EncodingMultiple Encoding = "b3multi"
)

// ParseEncoding maps a propagator name onto an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(name))) {
	case EncodingSingle, "":
		return EncodingSingle, nil
	case EncodingMultiple:
		return EncodingMultiple, nil
	default:
		return "", fmt.Errorf("b3: unknown encoding %q (use %q or %q)", name, EncodingSingle, EncodingMultiple)
	}
}

// Propagator returns the codec for enc. Unknown encodings get the single
// header codec.
func Propagator(enc Encoding) propagation.TextMapPropagator {
	if enc == EncodingMultiple {
		return Multiple()
	}
	return Single()
}

// Multiple returns the multiple-header codec. The value is stateless and
// safe for concurrent use.
func Multiple() MultipleHeader { return MultipleHeader{} }

// Single returns the single-header codec. The value is stateless and safe
// for concurrent use.
func Single() SingleHeader { return SingleHeader{} }

func sampledBit(sampled bool) string {
	if sampled {
		return "1"
	}
	return "0"
}
