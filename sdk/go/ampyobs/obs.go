package ampyobs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/b3"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	CollectorGRPC  string // "127.0.0.1:4317" (your Collector)
	Encoding       string // "b3" (default) | "b3multi"
}

type Handle struct {
	cfg        Config
	tp         trace.TracerProvider
	shutdown   func(context.Context) error
	encoding   b3.Encoding
	Propagator propagation.TextMapPropagator
	Logger     Logger
	Metrics    *Metrics
	prop       *PropagationMetrics
}

func Init(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.CollectorGRPC == "" {
		cfg.CollectorGRPC = "127.0.0.1:4317"
	}
	enc, err := b3.ParseEncoding(cfg.Encoding)
	if err != nil {
		return nil, fmt.Errorf("propagation: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("resource: %w", err)
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.CollectorGRPC),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	h := NewHandle(cfg, tp, enc)
	h.shutdown = tp.Shutdown
	otel.SetTextMapPropagator(h.Propagator)
	return h, nil
}

// NewHandle wires a Handle around an existing tracer provider without
// touching otel globals.
func NewHandle(cfg Config, tp trace.TracerProvider, enc b3.Encoding) *Handle {
	m := NewMetrics()
	return &Handle{
		cfg:        cfg,
		tp:         tp,
		encoding:   enc,
		Propagator: b3.Propagator(enc),
		Logger:     newLogger(cfg),
		Metrics:    m,
		prop:       m.NewPropagationMetrics("ampy"),
	}
}

// Encoding returns the B3 encoding this handle injects.
func (h *Handle) Encoding() b3.Encoding { return h.encoding }

func (h *Handle) Tracer(name string) trace.Tracer {
	return h.tp.Tracer(name)
}

func (h *Handle) Shutdown(ctx context.Context) error {
	if h.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return h.shutdown(ctx)
}
