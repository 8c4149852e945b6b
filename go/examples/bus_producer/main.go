package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"ampy.local/ampy-b3/go/ampyobs"
	"ampy.local/ampy-b3/go/b3"
)

func main() {
	ampyobs.SetErrorHandler(func(err error) {
		fmt.Printf("OTEL-ERROR: %v\n", err)
	})

	// B3_ENCODING selects b3 (default) or b3multi for the message headers.
	enc, err := b3.ParseEncoding(os.Getenv("B3_ENCODING"))
	if err != nil {
		panic(err)
	}

	err = ampyobs.Init(ampyobs.Config{
		ServiceName:       "demo-producer",
		ServiceVersion:    "0.1.0",
		Environment:       "dev",
		CollectorEndpoint: "localhost:4318",
		TraceProtocol:     "http",
		Propagators:       []string{string(enc)},
		EnableLogs:        true,
		EnableMetrics:     true,
		EnableTracing:     true,
		Sampler:           "ratio",
		SampleRatio:       1.0,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to init ampyobs: %v", err))
	}

	ctx := context.Background()

	headers := map[string]string{}
	ctx, span := ampyobs.StartPublishSpan(ctx, ampyobs.MessageAttrs{
		Topic:        "ampy/dev/signals/v1",
		MessageID:    uuid.NewString(),
		PartitionKey: "AAPL",
		Encoding:     enc,
	}, headers)

	ampyobs.C(ctx).Info("publishing signal",
		slog.String("event", "signals.emit"),
		slog.String("b3_encoding", string(enc)),
	)
	span.End()

	data, _ := json.MarshalIndent(headers, "", "  ")
	_ = os.WriteFile("bus_headers.json", data, 0o644)
	fmt.Println("Wrote bus_headers.json with headers:", headers)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ampyobs.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Shutdown error: %v\n", err)
	}
}
