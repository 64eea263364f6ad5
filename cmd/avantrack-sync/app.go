package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aRFialho/AvanTracking/config"
	"github.com/aRFialho/AvanTracking/internal/broker/kafka"
	"github.com/aRFialho/AvanTracking/internal/broker/messages"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/fake"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/intelipost"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
	"github.com/aRFialho/AvanTracking/internal/services/syncer"
	"github.com/aRFialho/AvanTracking/internal/storage/pgorders"
)

type syncRepository interface {
	reconcile.Repository
	syncer.Repository
}

type workerFactories struct {
	newStorage        func(cfg *config.Config) (repo syncRepository, closeFn func(), err error)
	newProducer       func(cfg *config.Config) syncer.Producer
	newTrackingClient func(cfg *config.Config) tracking.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (syncRepository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgorders.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) syncer.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newTrackingClient: newTrackingClient,
	}
}

func newTrackingClient(cfg *config.Config) tracking.Client {
	if cfg.AvanTracking.TrackingProviderMode == "intelipost" && cfg.AvanTracking.IntelipostClientID != "" {
		return intelipost.New(
			cfg.AvanTracking.IntelipostBaseURL,
			cfg.AvanTracking.IntelipostClientID,
			cfg.AvanTracking.IntelipostOrigin,
		)
	}
	return fake.New()
}

func buildDriver(cfg *config.Config, repo syncRepository, producer syncer.Producer, client tracking.Client, limiter *ratelimit.Limiter) *syncer.Driver {
	topic := cfg.Kafka.OrderSyncedTopicName
	if topic == "" {
		topic = messages.TopicOrderSynced
	}

	interval := time.Duration(cfg.AvanTracking.SyncIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	pacing := time.Duration(cfg.AvanTracking.SyncPacingMillis) * time.Millisecond
	if cfg.AvanTracking.SyncPacingMillis <= 0 {
		pacing = 500 * time.Millisecond
	}

	rec := reconcile.New(repo, client, limiter)
	return syncer.New(repo, rec, producer, topic).WithSettings(interval, pacing)
}

func newLimiter(cfg *config.Config) *ratelimit.Limiter {
	max := cfg.AvanTracking.RateLimitMaxRequests
	if max <= 0 {
		max = 180
	}
	window := time.Duration(cfg.AvanTracking.RateLimitWindowSeconds) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	return ratelimit.New(max, window)
}

func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories, onReady func(d *syncer.Driver, l *ratelimit.Limiter)) error {
	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	limiter := newLimiter(cfg)
	d := buildDriver(cfg, repo, f.newProducer(cfg), f.newTrackingClient(cfg), limiter)
	if onReady != nil {
		onReady(d, limiter)
	}
	return d.Run(ctx)
}
