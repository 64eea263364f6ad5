package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  order_synced_topic_name: "order.synced"
redis:
  host: "localhost"
  port: 6379
avantracking:
  http_addr: ":8080"
  kafka_consumer_group: "avantrack-api"
  current_status_ttl_seconds: 600
  tracking_provider_mode: "fake"
  rate_limit_max_requests: 180
  rate_limit_window_seconds: 60
  sync_pacing_millis: 500
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "order.synced", cfg.Kafka.OrderSyncedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.AvanTracking.HTTPAddr)
	require.Equal(t, "fake", cfg.AvanTracking.TrackingProviderMode)
	require.Equal(t, 180, cfg.AvanTracking.RateLimitMaxRequests)
	require.Equal(t, 500, cfg.AvanTracking.SyncPacingMillis)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
