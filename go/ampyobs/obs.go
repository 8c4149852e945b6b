package ampyobs

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/credentials"

	"ampy.local/ampy-b3/go/b3"
)

type Config struct {
	ServiceName       string
	ServiceVersion    string
	Environment       string   // dev | staging | prod
	CollectorEndpoint string   // e.g. "http://localhost:4317" or "localhost:4317"
	TraceProtocol     string   // "grpc" | "http" (default: "grpc")
	Propagators       []string // b3 | b3multi | tracecontext | baggage (default: b3, b3multi)
	EnableLogs        bool     // JSON logs via slog (stdout)
	EnableMetrics     bool     // OTLP metrics to collector
	EnableTracing     bool     // OTLP traces to collector
	Sampler           string   // "parent" | "ratio"
	SampleRatio       float64
}

var (
	globalCfg       Config
	tracerProvider  *sdktrace.TracerProvider
	meterProvider   *sdkmetric.MeterProvider
	globalResources *resource.Resource
)

// SetErrorHandler sets a custom error handler for OTel errors
func SetErrorHandler(handler func(error)) {
	otel.SetErrorHandler(errorHandlerFunc(handler))
}

type errorHandlerFunc func(error)

func (f errorHandlerFunc) Handle(err error) { f(err) }

// headerSizeBoundaries returns bucket boundaries for encoded header sizes
func headerSizeBoundaries() []float64 {
	return []float64{16, 32, 51, 64, 68, 85, 128, 256} // bytes
}

// getMetricViews returns views for customizing histogram buckets
func getMetricViews() []sdkmetric.View {
	return []sdkmetric.View{
		sdkmetric.NewView(
			sdkmetric.Instrument{Name: metricHeaderSize},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: headerSizeBoundaries(),
				},
			},
		),
	}
}

// NewPropagator builds a composite propagator from names. Unknown names are
// an error; an empty list yields B3 single then multiple.
func NewPropagator(names []string) (propagation.TextMapPropagator, error) {
	if len(names) == 0 {
		names = []string{string(b3.EncodingSingle), string(b3.EncodingMultiple)}
	}
	props := make([]propagation.TextMapPropagator, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "tracecontext":
			props = append(props, propagation.TraceContext{})
		case "baggage":
			props = append(props, propagation.Baggage{})
		default:
			enc, err := b3.ParseEncoding(name)
			if err != nil {
				return nil, fmt.Errorf("propagator %q: %w", name, err)
			}
			props = append(props, b3.Propagator(enc))
		}
	}
	return propagation.NewCompositeTextMapPropagator(props...), nil
}

func Init(cfg Config) error {
	globalCfg = cfg

	// ----- Resource -----
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("resource: %w", err)
	}
	globalResources = res

	// ----- Propagation (B3 by default) -----
	prop, err := NewPropagator(cfg.Propagators)
	if err != nil {
		return fmt.Errorf("propagation: %w", err)
	}
	otel.SetTextMapPropagator(prop)

	// ----- Logging -----
	if cfg.EnableLogs {
		setupSlog(res) // JSON stdout; adds trace/span when ctx provided
	}

	// ----- Tracing -----
	if cfg.EnableTracing {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return err
		}
		tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	// ----- Metrics -----
	if cfg.EnableMetrics {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			return err
		}
		meterProvider = mp
		otel.SetMeterProvider(mp)

		if err := useMeterProvider(mp); err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}

		// Runtime metrics (GC, mem, goroutines, etc.)
		_ = runtime.Start(
			runtime.WithMinimumReadMemStatsInterval(10*time.Second),
			runtime.WithMeterProvider(mp),
		)
	}

	return nil
}

func newTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	endpoint, insecure := parseEndpoint(cfg.CollectorEndpoint)
	protocol := strings.ToLower(cfg.TraceProtocol)
	if protocol == "" {
		protocol = "grpc"
	}

	var exp sdktrace.SpanExporter
	var err error

	switch protocol {
	case "http":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(endpoint),
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("otlptrace http exporter: %w", err)
		}
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
		}
		exp, err = otlptracegrpc.New(context.Background(), opts...)
		if err != nil {
			return nil, fmt.Errorf("otlptrace grpc exporter: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported trace protocol: %s (use 'grpc' or 'http')", cfg.TraceProtocol)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithBatchTimeout(5*time.Second)),
	)
	return tp, nil
}

// newSampler honors the sampled bit carried in by B3 through ParentBased;
// only root spans fall back to the ratio.
func newSampler(cfg Config) sdktrace.Sampler {
	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25))
	switch strings.ToLower(cfg.Sampler) {
	case "ratio":
		if cfg.SampleRatio >= 0 && cfg.SampleRatio <= 1 {
			sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
		}
	case "parent", "":
	}
	return sampler
}

func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	endpoint, insecure := parseEndpoint(cfg.CollectorEndpoint)

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(endpoint),
	}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(&tls.Config{})))
	}

	exp, err := otlpmetricgrpc.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("otlpmetric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exp,
		sdkmetric.WithInterval(10*time.Second),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(getMetricViews()...),
	)
	return mp, nil
}

func Shutdown(ctx context.Context) error {
	if meterProvider != nil {
		_ = meterProvider.Shutdown(ctx)
	}
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

func parseEndpoint(raw string) (hostport string, insecure bool) {
	if raw == "" {
		return "localhost:4317", true
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		// likely "host:port"; url.Parse reads "localhost:4317" as scheme+opaque
		host, port, _ := net.SplitHostPort(raw)
		if port == "" {
			return raw, true
		}
		if host == "" {
			return "localhost:" + port, true
		}
		return raw, true
	}
	insecure = (u.Scheme == "http")
	return u.Host, insecure
}
