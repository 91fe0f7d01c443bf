package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrefixedKey(t *testing.T) {
	require.Equal(t, "gatepass:ratelimit:login", prefixedKey("ratelimit:login"))
	require.Equal(t, "gatepass:ratelimit:login", prefixedKey("gatepass:ratelimit:login"))
	require.Equal(t, "gatepass:a_b", prefixedKey("  a   b "))
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(RedisConfig{Address: "cache.internal:6380", Password: "pw", DB: 2, TLS: true, Timeout: time.Second})
	require.Equal(t, "cache.internal:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, time.Second, opts.ReadTimeout)
	require.NotNil(t, opts.TLSConfig)
	require.Equal(t, "cache.internal", opts.TLSConfig.ServerName)
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{})
	require.ErrorContains(t, err, "address is required")
}

func TestNewRedisStoreFailsWhenUnreachable(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisConfig{Address: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	require.ErrorContains(t, err, "redis ping")
}
