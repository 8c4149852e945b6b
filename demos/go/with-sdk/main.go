package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ampy.local/ampy-b3/sdk/go/ampyobs"
)

const addr = "127.0.0.1:9464"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	obs, err := ampyobs.Init(ctx, ampyobs.Config{
		ServiceName:    "ampy-b3-demo",
		ServiceVersion: "0.1.0",
		Environment:    "dev",
		CollectorGRPC:  "127.0.0.1:4317",
		Encoding:       os.Getenv("B3_ENCODING"),
	})
	if err != nil {
		log.Fatalf("init obs: %v", err)
	}
	defer obs.Shutdown(context.Background())

	reqs := obs.Metrics.NewCounter("ampy_demo", "requests_total", "Total demo requests.", nil, "route")
	lat := obs.Metrics.NewHistogram("ampy_demo", "request_latency_ms", "Latency in ms.", []float64{1, 2, 5, 10, 20, 50, 100, 200, 500}, nil, "route")

	// Calls back into this server so /work shows up as the B3 parent of /leaf.
	client := &http.Client{
		Transport: ampyobs.HTTPClientTransport(obs, nil),
		Timeout:   2 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Metrics.Handler())
	mux.HandleFunc("/work", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/leaf", nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp, err := client.Do(req)
		if err != nil {
			obs.Logger.Error(ctx, "leaf call failed", ampyobs.F("error", err.Error()))
			http.Error(w, "leaf call failed", http.StatusBadGateway)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		reqs.With(prometheus.Labels{"route": "work"}).Inc()
		lat.With(prometheus.Labels{"route": "work"}).Observe(float64(time.Since(start).Milliseconds()))
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/leaf", func(w http.ResponseWriter, r *http.Request) {
		_, span := obs.Tracer("ampy-demo").Start(r.Context(), "leaf.do")
		defer span.End()

		time.Sleep(time.Duration(5+rand.Intn(60)) * time.Millisecond)
		reqs.With(prometheus.Labels{"route": "leaf"}).Inc()
		_, _ = w.Write([]byte("leaf\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: ampyobs.HTTPServerMiddleware(obs)(mux),
	}

	go func() {
		log.Printf("demo: serving on http://%s  (GET /work, /metrics), encoding %s", addr, obs.Encoding())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	_ = srv.Shutdown(context.Background())
	fmt.Println("bye")
}
