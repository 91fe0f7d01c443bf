package cache

import (
	"context"
	"time"
)

// Store is the shared key/value contract used for rate-limit counters.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Purger is implemented by stores that keep expired entries until swept.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

var (
	_ Store  = (*DatabaseStore)(nil)
	_ Purger = (*DatabaseStore)(nil)
	_ Store  = (*RedisStore)(nil)
)
