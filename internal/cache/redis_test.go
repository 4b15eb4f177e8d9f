package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedis(client, MemoryConfig{TTL: time.Hour, HighConfTTL: 48 * time.Hour, HighConfFloor: 0.8}, logger), mr
}

func TestRedis_GetSet(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", austinResult())

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "Austin", got.Location)
	assert.Equal(t, []string{"mapbox"}, got.Providers)
}

func TestRedis_TTLExpiry(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	low := austinResult()
	low.Confidence = 0.6
	c.Set(ctx, "k", low)

	mr.FastForward(2 * time.Hour)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "entry past TTL behaves like a miss")
}

func TestRedis_HighConfidenceExtendedTTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", austinResult()) // confidence 0.9 ≥ floor

	mr.FastForward(2 * time.Hour)

	_, ok := c.Get(ctx, "k")
	assert.True(t, ok, "high-confidence entry survives past the base TTL")
}

func TestRedis_StatsCountHits(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", austinResult())
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	stats := c.Stats(ctx)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, int64(2), stats.TotalHits)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("georesolve:k", "not json"))

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
