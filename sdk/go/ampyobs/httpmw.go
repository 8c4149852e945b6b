package ampyobs

import (
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

const (
	outcomeOK     = "ok"
	outcomeAbsent = "absent"
	outcomeReject = "reject"
)

// HTTPServerMiddleware continues B3 traces from incoming requests. Either
// encoding is accepted; the single header wins when both are valid.
func HTTPServerMiddleware(hdl *Handle) func(next http.Handler) http.Handler {
	tr := hdl.Tracer("http.server")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc, origin := extractInbound(r.Header)
			origin.Peer = r.RemoteAddr
			hdl.prop.Extracted.WithLabelValues(string(origin.Encoding), origin.Outcome).Inc()

			ctx := WithOrigin(r.Context(), origin)
			if sc.IsValid() {
				ctx = trace.ContextWithRemoteSpanContext(ctx, sc)
			}
			ctx, span := tr.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			start := time.Now()
			ww := &respWriter{ResponseWriter: w, status: 200}
			next.ServeHTTP(ww, r.WithContext(ctx))

			hdl.Logger.Info(ctx, "http.request",
				F("method", r.Method),
				F("path", r.URL.Path),
				F("status", ww.status),
				F("latency_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

// extractInbound decodes B3 from h. A header set that is present but
// malformed reports outcome reject with the encoding that was tried.
func extractInbound(h http.Header) (trace.SpanContext, Origin) {
	carrier := propagation.HeaderCarrier(h)

	sc, errSingle := b3.DecodeSingle(carrier)
	if errSingle == nil {
		return sc, Origin{Encoding: b3.EncodingSingle, Outcome: outcomeOK}
	}
	sc, errMulti := b3.DecodeMultiple(carrier)
	if errMulti == nil {
		return sc, Origin{Encoding: b3.EncodingMultiple, Outcome: outcomeOK}
	}

	if !errors.Is(errSingle, b3.ErrMissingHeader) {
		return trace.SpanContext{}, Origin{Encoding: b3.EncodingSingle, Outcome: outcomeReject}
	}
	if len(h.Values(b3.TraceIDHeader)) > 0 || len(h.Values(b3.SpanIDHeader)) > 0 {
		return trace.SpanContext{}, Origin{Encoding: b3.EncodingMultiple, Outcome: outcomeReject}
	}
	return trace.SpanContext{}, Origin{Outcome: outcomeAbsent}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// HTTPClientTransport injects the handle's B3 encoding into outgoing
// requests. base defaults to http.DefaultTransport.
func HTTPClientTransport(hdl *Handle, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &b3Transport{hdl: hdl, base: base}
}

type b3Transport struct {
	hdl  *Handle
	base http.RoundTripper
}

func (t *b3Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if trace.SpanContextFromContext(req.Context()).IsValid() {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		t.hdl.Propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
		t.hdl.prop.Injected.WithLabelValues(string(t.hdl.encoding)).Inc()
	}
	return t.base.RoundTrip(req)
}
