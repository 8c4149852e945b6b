package ampyobs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

const (
	traceIDStr = "ff000000000000000000000000000041"
	spanIDStr  = "ff00000000000041"
)

func newTestHandle(t *testing.T, enc b3.Encoding) (*Handle, *tracetest.SpanRecorder, *bytes.Buffer) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(sr),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := Config{ServiceName: "b3-test", Environment: "test"}
	hdl := NewHandle(cfg, tp, enc)
	var buf bytes.Buffer
	hdl.Logger = newLoggerTo(cfg, &buf)
	return hdl, sr, &buf
}

func TestHTTPServerMiddleware_ContinuesTrace(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		encoding b3.Encoding
		sampled  bool
	}{
		{
			name:     "single header",
			headers:  map[string]string{"b3": traceIDStr + "-" + spanIDStr + "-1"},
			encoding: b3.EncodingSingle,
			sampled:  true,
		},
		{
			name:     "multiple headers",
			headers:  map[string]string{"X-B3-TraceId": traceIDStr, "X-B3-SpanId": spanIDStr, "X-B3-Sampled": "0"},
			encoding: b3.EncodingMultiple,
		},
		{
			name:     "invalid single falls back to multiple",
			headers:  map[string]string{"b3": "garbage", "X-B3-TraceId": traceIDStr, "X-B3-SpanId": spanIDStr},
			encoding: b3.EncodingMultiple,
			sampled:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdl, sr, buf := newTestHandle(t, b3.EncodingSingle)

			var origin Origin
			h := HTTPServerMiddleware(hdl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				origin, _ = OriginFromContext(r.Context())
				w.WriteHeader(http.StatusAccepted)
			}))

			req := httptest.NewRequest(http.MethodGet, "/work", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, tt.encoding, origin.Encoding)
			assert.Equal(t, outcomeOK, origin.Outcome)

			ended := sr.Ended()
			require.Len(t, ended, 1)
			parent := ended[0].Parent()
			assert.Equal(t, traceIDStr, parent.TraceID().String())
			assert.Equal(t, spanIDStr, parent.SpanID().String())
			assert.True(t, parent.IsRemote())
			assert.Equal(t, tt.sampled, parent.IsSampled())

			assert.Equal(t, 1.0, testutil.ToFloat64(hdl.prop.Extracted.WithLabelValues(string(tt.encoding), outcomeOK)))

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, "http.request", line["message"])
			assert.Equal(t, traceIDStr, line["trace_id"])
			assert.Equal(t, string(tt.encoding), line["b3_encoding"])
			assert.EqualValues(t, http.StatusAccepted, line["status"])
		})
	}
}

func TestExtractInbound_Outcomes(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		encoding b3.Encoding
		outcome  string
	}{
		{name: "no headers", headers: map[string]string{}, outcome: outcomeAbsent},
		{name: "bad single", headers: map[string]string{"b3": "d"}, encoding: b3.EncodingSingle, outcome: outcomeReject},
		{
			name:     "bad multiple",
			headers:  map[string]string{"X-B3-TraceId": traceIDStr, "X-B3-SpanId": "0000000000000000"},
			encoding: b3.EncodingMultiple,
			outcome:  outcomeReject,
		},
		{
			name:     "empty multiple trace id",
			headers:  map[string]string{"X-B3-TraceId": ""},
			encoding: b3.EncodingMultiple,
			outcome:  outcomeReject,
		},
		{
			name:     "bad parent",
			headers:  map[string]string{"X-B3-TraceId": traceIDStr, "X-B3-SpanId": spanIDStr, "X-B3-ParentSpanId": "nope"},
			encoding: b3.EncodingMultiple,
			outcome:  outcomeReject,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			sc, origin := extractInbound(h)
			assert.False(t, sc.IsValid())
			assert.Equal(t, tt.encoding, origin.Encoding)
			assert.Equal(t, tt.outcome, origin.Outcome)
		})
	}
}

func TestHTTPServerMiddleware_NoHeadersStartsRoot(t *testing.T) {
	hdl, sr, _ := newTestHandle(t, b3.EncodingSingle)
	h := HTTPServerMiddleware(hdl)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.False(t, ended[0].Parent().IsValid())
	assert.Equal(t, 1.0, testutil.ToFloat64(hdl.prop.Extracted.WithLabelValues("", outcomeAbsent)))
}

type captureTransport struct {
	got *http.Request
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.got = req
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestHTTPClientTransport(t *testing.T) {
	tests := []struct {
		encoding b3.Encoding
		want     http.Header
	}{
		{
			encoding: b3.EncodingSingle,
			want:     http.Header{"B3": {traceIDStr + "-" + spanIDStr + "-1"}},
		},
		{
			encoding: b3.EncodingMultiple,
			want: http.Header{
				"X-B3-Traceid": {traceIDStr},
				"X-B3-Spanid":  {spanIDStr},
				"X-B3-Sampled": {"1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.encoding), func(t *testing.T) {
			hdl, _, _ := newTestHandle(t, tt.encoding)
			base := &captureTransport{}
			client := &http.Client{Transport: HTTPClientTransport(hdl, base)}

			tid, _ := trace.TraceIDFromHex(traceIDStr)
			sid, _ := trace.SpanIDFromHex(spanIDStr)
			ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
			}))

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid/", nil)
			require.NoError(t, err)
			resp, err := client.Do(req)
			require.NoError(t, err)
			_ = resp.Body.Close()

			require.NotNil(t, base.got)
			assert.Equal(t, tt.want, base.got.Header)
			assert.Empty(t, req.Header, "caller request must not be mutated")
			assert.Equal(t, 1.0, testutil.ToFloat64(hdl.prop.Injected.WithLabelValues(string(tt.encoding))))
		})
	}
}

func TestHTTPClientTransport_NoSpanNoHeaders(t *testing.T) {
	hdl, _, _ := newTestHandle(t, b3.EncodingSingle)
	base := &captureTransport{}
	client := &http.Client{Transport: HTTPClientTransport(hdl, base)}

	resp, err := client.Get("http://example.invalid/")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Empty(t, base.got.Header)
	assert.Equal(t, 0.0, testutil.ToFloat64(hdl.prop.Injected.WithLabelValues("b3")))
}
