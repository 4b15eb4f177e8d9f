// Package cache provides time-bounded result caching for the resolution
// engine. Popular destinations are queried constantly and rarely relocate,
// so a fresh hit skips every provider call.
//
// Two implementations exist: an in-memory cache with lazy TTL expiry and
// least-recently-inserted eviction (the default), and a Redis-backed cache
// for multi-instance deployments where instances should share hits.
package cache

import (
	"context"

	"github.com/roamstack/place-resolver/internal/domain"
)

// Cache stores resolved results keyed by Key(normalized query, options).
//
// Implementations must honor value-copy semantics: a result returned by Get
// or passed to Set is never aliased by the cache, so caller mutation cannot
// corrupt cached state. An entry older than its TTL behaves exactly like a
// miss and is never returned.
type Cache interface {
	Get(ctx context.Context, key string) (*domain.GeocodeResult, bool)
	Set(ctx context.Context, key string, result domain.GeocodeResult)
	Stats(ctx context.Context) Stats
}

// Stats is the introspection surface consumed by telemetry.
type Stats struct {
	Size      int   `json:"size"`
	TotalHits int64 `json:"totalHits"`
}
