package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"ampy.local/ampy-b3/go/ampyobs"
	"ampy.local/ampy-b3/go/b3"
)

func main() {
	ampyobs.SetErrorHandler(func(err error) {
		fmt.Printf("OTEL-ERROR: %v\n", err)
	})

	enc, err := b3.ParseEncoding(os.Getenv("B3_ENCODING"))
	if err != nil {
		panic(err)
	}

	err = ampyobs.Init(ampyobs.Config{
		ServiceName:       "demo-consumer",
		ServiceVersion:    "0.1.0",
		Environment:       "dev",
		CollectorEndpoint: "localhost:4318",
		TraceProtocol:     "http",
		EnableLogs:        true,
		EnableMetrics:     true,
		EnableTracing:     true,
		Sampler:           "parent",
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to init ampyobs: %v", err))
	}

	raw, err := os.ReadFile("bus_headers.json")
	if err != nil {
		panic("run the producer first to create bus_headers.json")
	}
	headers := map[string]string{}
	if err := json.Unmarshal(raw, &headers); err != nil {
		panic(err)
	}

	ctx, span := ampyobs.StartConsumeSpan(context.Background(), headers, ampyobs.MessageAttrs{
		Topic:        "ampy/dev/signals/v1",
		MessageID:    uuid.NewString(),
		PartitionKey: "AAPL",
		Encoding:     enc,
	})

	parent := trace.SpanContextFromContext(ctx)
	ampyobs.C(ctx).Info("consumed signal",
		slog.String("event", "signals.consume"),
		slog.Bool("continued", parent.IsValid()),
	)
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ampyobs.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
