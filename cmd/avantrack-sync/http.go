package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aRFialho/AvanTracking/config"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/syncer"
)

type workerHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	driver  *syncer.Driver
	limiter *ratelimit.Limiter
	cfg     *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.driver == nil {
			_, _ = w.Write([]byte(`{"error":"driver not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.driver.Stats())
	})

	r.Get("/ratelimit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.limiter == nil {
			_, _ = w.Write([]byte(`{"error":"limiter not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.limiter.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational sync settings.
		out := map[string]any{
			"trackingProviderMode":   opts.cfg.AvanTracking.TrackingProviderMode,
			"syncIntervalSeconds":    opts.cfg.AvanTracking.SyncIntervalSeconds,
			"syncPacingMillis":       opts.cfg.AvanTracking.SyncPacingMillis,
			"rateLimitMaxRequests":   opts.cfg.AvanTracking.RateLimitMaxRequests,
			"rateLimitWindowSeconds": opts.cfg.AvanTracking.RateLimitWindowSeconds,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.driver == nil {
			_, _ = w.Write([]byte(`{"error":"driver not wired"}`))
			return
		}
		opts.driver.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
