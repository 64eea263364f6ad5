package cache

import (
	"context"
	"time"
)

// BytesCache is the read-through cache used by the orders service for
// dashboard and per-order responses.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
