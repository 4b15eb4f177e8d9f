package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/roamstack/place-resolver/internal/domain"
)

// Redis is a Cache backed by a Redis instance, for deployments running
// several resolver replicas that should share cache hits. Redis owns TTL
// expiry and memory bounding (maxmemory + an LRU policy), so this
// implementation only serializes results and picks the per-entry TTL.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	cfg       MemoryConfig // reuses the TTL policy knobs
	logger    *slog.Logger

	hits atomic.Int64
}

// NewRedis creates a Redis-backed cache. Serialization failures and Redis
// errors degrade to cache misses; the engine then just re-resolves.
func NewRedis(client redis.UniversalClient, cfg MemoryConfig, logger *slog.Logger) *Redis {
	cfg.applyDefaults()
	return &Redis{
		client:    client,
		keyPrefix: "georesolve:",
		cfg:       cfg,
		logger:    logger,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (*domain.GeocodeResult, bool) {
	data, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("redis cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var result domain.GeocodeResult
	if err := json.Unmarshal(data, &result); err != nil {
		r.logger.Warn("redis cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	r.hits.Add(1)
	return &result, true
}

func (r *Redis) Set(ctx context.Context, key string, result domain.GeocodeResult) {
	ttl := r.cfg.TTL
	if result.Confidence >= r.cfg.HighConfFloor {
		ttl = r.cfg.HighConfTTL
	}
	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("redis cache marshal failed", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, r.keyPrefix+key, data, ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

func (r *Redis) Stats(ctx context.Context) Stats {
	stats := Stats{TotalHits: r.hits.Load()}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if n, err := r.client.DBSize(ctx).Result(); err == nil {
		stats.Size = int(n)
	}
	return stats
}
