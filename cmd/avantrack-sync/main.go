package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aRFialho/AvanTracking/config"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/syncer"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("erro ao carregar a configuração: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpErr := make(chan error, 1)
	err = RunSyncWorker(ctx, cfg, defaultWorkerFactories(), func(d *syncer.Driver, l *ratelimit.Limiter) {
		go func() {
			httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr: cfg.AvanTracking.WorkerHTTPAddr,
				onListen: func(addr string) { slog.Info("worker HTTP listening", "addr", addr) },
				driver:   d,
				limiter:  l,
				cfg:      cfg,
			})
		}()
	})
	if err != nil && err != context.Canceled {
		panic(err)
	}

	select {
	case err := <-httpErr:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker HTTP server", "error", err.Error())
		}
	default:
	}
}
