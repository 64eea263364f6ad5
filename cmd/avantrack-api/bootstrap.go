package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aRFialho/AvanTracking/config"
	"github.com/aRFialho/AvanTracking/internal/api/ordersapi"
	"github.com/aRFialho/AvanTracking/internal/broker/kafka"
	"github.com/aRFialho/AvanTracking/internal/broker/messages"
	"github.com/aRFialho/AvanTracking/internal/cache/rediscache"
	"github.com/aRFialho/AvanTracking/internal/integrations/storefront"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/fake"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/intelipost"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/ingest"
	"github.com/aRFialho/AvanTracking/internal/services/orders"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
	"github.com/aRFialho/AvanTracking/internal/storage/pgorders"
)

type ordersAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     ordersAPIOpts
	api      *ordersapi.API
	svc      *orders.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapOrdersAPI() *ordersAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("erro ao carregar a configuração: %v", err))
	}

	httpAddr := cfg.AvanTracking.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.AvanTracking.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "avantrack-api"
	}
	topic := cfg.Kafka.OrderSyncedTopicName
	if topic == "" {
		topic = messages.TopicOrderSynced
	}

	cacheTTL := time.Duration(cfg.AvanTracking.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)

	limiter := newAPILimiter(cfg)
	trackingClient := newTrackingClient(cfg)
	rec := reconcile.New(st, trackingClient, limiter)
	svc := orders.New(st, rec, rc, cacheTTL)
	importer := ingest.New(st)

	var storefrontSrc ingest.StorefrontSource
	if cfg.AvanTracking.StorefrontBaseURL != "" {
		storefrontSrc = storefront.New(cfg.AvanTracking.StorefrontBaseURL, cfg.AvanTracking.StorefrontAccessToken, limiter)
	}

	api := ordersapi.New(svc, importer, storefrontSrc, limiter)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &ordersAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: ordersAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   os.Getenv("swaggerPath"),
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		svc:      svc,
		consumer: consumer,
		closeDB:  st.Close,
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

func newAPILimiter(cfg *config.Config) *ratelimit.Limiter {
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

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *ordersAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *ordersAPIApp) Run() error {
	return runOrdersAPI(a.ctx, a.opts, a.api, a.svc, a.consumer)
}
