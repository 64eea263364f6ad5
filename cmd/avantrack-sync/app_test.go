package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aRFialho/AvanTracking/config"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/fake"
	"github.com/aRFialho/AvanTracking/internal/integrations/tracking/intelipost"
	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/services/syncer"
	"github.com/aRFialho/AvanTracking/internal/storage/pgorders"
)

type fakeRepo struct{}

func (r *fakeRepo) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return nil, nil
}

func (r *fakeRepo) MarkSyncFailure(ctx context.Context, orderID uint64, reason string, syncedAt time.Time) error {
	return nil
}

func (r *fakeRepo) MarkChannelLogistics(ctx context.Context, orderID uint64, lastUpdate time.Time, ev *models.TrackingEvent) error {
	return nil
}

func (r *fakeRepo) ApplyOrderUpdate(ctx context.Context, upd pgorders.OrderUpdate) error {
	return nil
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]*models.Order, error) {
	return []*models.Order{}, nil
}

type noopProducer struct{}

func (noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestNewTrackingClient_Selection(t *testing.T) {
	c := newTrackingClient(&config.Config{
		AvanTracking: config.AvanTrackingConfig{
			TrackingProviderMode: "intelipost",
			IntelipostClientID:   "client-1",
		},
	})
	_, ok := c.(*intelipost.Client)
	require.True(t, ok)

	// no client id means the real provider cannot be called
	c = newTrackingClient(&config.Config{
		AvanTracking: config.AvanTrackingConfig{TrackingProviderMode: "intelipost"},
	})
	_, ok = c.(*fake.Client)
	require.True(t, ok)

	c = newTrackingClient(&config.Config{})
	_, ok = c.(*fake.Client)
	require.True(t, ok)
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := newLimiter(&config.Config{})
	st := l.Stats()
	require.Equal(t, 180, st.MaxRequests)
}

func TestRunSyncWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (syncRepository, func(), error) {
			return &fakeRepo{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) syncer.Producer {
			return noopProducer{}
		},
		newTrackingClient: func(cfg *config.Config) tracking.Client {
			return fake.New()
		},
	}

	cfg := &config.Config{
		Kafka:        config.KafkaConfig{OrderSyncedTopicName: "t"},
		AvanTracking: config.AvanTrackingConfig{SyncIntervalSeconds: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunSyncWorker(ctx, cfg, f, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}
