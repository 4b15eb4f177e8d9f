// Package engine composes the resolution pipeline: cache lookup, query
// normalization, the provider fallback chain, disambiguation, and fuzzy
// typo correction, behind the two public operations Resolve and
// ResolveFuzzy.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roamstack/place-resolver/internal/cache"
	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/normalize"
	"github.com/roamstack/place-resolver/internal/observability"
)

// Config carries the engine's tunable thresholds. The reference values are
// empirically chosen, not architecturally load-bearing, which is exactly
// why they live in configuration.
type Config struct {
	// AcceptConfidence is the fallback chain's bar: the first provider
	// result strictly above it wins and stops the iteration.
	AcceptConfidence float64

	// FuzzyKeepConfidence filters corrected candidates in ResolveFuzzy.
	FuzzyKeepConfidence float64

	// AlternativeFloor is the minimum confidence for a disambiguation
	// alternative to be kept.
	AlternativeFloor float64

	// MaxAlternatives caps the disambiguation list.
	MaxAlternatives int

	// ProbeConcurrency bounds simultaneous country-biased lookups so
	// disambiguation stays fast without hammering the free provider.
	ProbeConcurrency int
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		AcceptConfidence:    0.5,
		FuzzyKeepConfidence: 0.6,
		AlternativeFloor:    0.3,
		MaxAlternatives:     3,
		ProbeConcurrency:    4,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.AcceptConfidence <= 0 {
		c.AcceptConfidence = def.AcceptConfidence
	}
	if c.FuzzyKeepConfidence <= 0 {
		c.FuzzyKeepConfidence = def.FuzzyKeepConfidence
	}
	if c.AlternativeFloor <= 0 {
		c.AlternativeFloor = def.AlternativeFloor
	}
	if c.MaxAlternatives <= 0 {
		c.MaxAlternatives = def.MaxAlternatives
	}
	if c.ProbeConcurrency <= 0 {
		c.ProbeConcurrency = def.ProbeConcurrency
	}
}

// Engine is the location resolution facade.
//
// The provider slice is the fallback chain in priority order; iteration is
// deliberately sequential because each adapter's outcome decides whether
// the next is attempted at all (first-acceptable-wins, never best-of-all).
type Engine struct {
	providers   []domain.Provider
	altProvider domain.Provider
	cache       cache.Cache
	sink        domain.ResolutionSink // optional, best-effort
	cfg         Config
	logger      *slog.Logger
	metrics     *observability.Metrics

	// group deduplicates concurrent in-flight resolutions of the same
	// cache key, so a burst of identical queries costs one provider call.
	group singleflight.Group
}

// New creates an Engine. Providers must be given in priority order; the
// second provider (the free one, by convention) also serves disambiguation
// probes. sink may be nil.
func New(providers []domain.Provider, c cache.Cache, sink domain.ResolutionSink, cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	cfg.applyDefaults()

	var alt domain.Provider
	if len(providers) > 1 {
		alt = providers[1]
	} else if len(providers) > 0 {
		alt = providers[0]
	}

	e := &Engine{
		providers:   providers,
		altProvider: alt,
		cache:       c,
		sink:        sink,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
	if len(providers) > 0 {
		metrics.EngineReady.Set(1)
	}
	return e
}

// CheckReadiness reports whether the engine can serve traffic.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if len(e.providers) == 0 {
		return errors.New("no geocoding providers configured")
	}
	return nil
}

// CacheStats exposes cache introspection for telemetry.
func (e *Engine) CacheStats(ctx context.Context) cache.Stats {
	return e.cache.Stats(ctx)
}

// Resolve turns a free-text place name into the canonical result.
//
// A nil result with a nil error means "unresolved", a normal outcome the
// caller should treat as "ask the user to clarify". Provider failures never
// escape; the only errors returned are the caller's own context ending.
func (e *Engine) Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}()

	normalized := normalize.Normalize(query)
	if normalized == "" {
		e.metrics.ResolveRequests.WithLabelValues("unresolved").Inc()
		return nil, nil
	}

	key := cache.Key(normalized, opts)

	if cached, ok := e.cache.Get(ctx, key); ok {
		e.metrics.CacheLookups.WithLabelValues("hit").Inc()
		e.metrics.ResolveRequests.WithLabelValues("cache_hit").Inc()
		e.publish(ctx, query, normalized, cached, true)
		return cached, nil
	}
	e.metrics.CacheLookups.WithLabelValues("miss").Inc()

	// Concurrent identical queries share one provider pass. The shared
	// call runs under the first caller's context; late joiners may see its
	// cancellation, which is acceptable for an idempotent lookup.
	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.resolveUncached(ctx, query, normalized, key, opts)
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.(*domain.GeocodeResult)
	if result == nil {
		return nil, nil
	}
	out := result.Clone()
	return &out, nil
}

// resolveUncached walks the fallback chain and caches an accepted result.
func (e *Engine) resolveUncached(ctx context.Context, query, normalized, key string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	for _, p := range e.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.Resolve(ctx, normalized, opts)
		if err != nil {
			// An unusable provider is non-fatal: log and try the next one.
			e.logger.Warn("provider failed, trying next",
				"provider", p.Name(),
				"query", normalized,
				"error", err,
			)
			continue
		}
		if result == nil {
			e.logger.Debug("provider had no match", "provider", p.Name(), "query", normalized)
			continue
		}
		if result.Confidence <= e.cfg.AcceptConfidence {
			e.logger.Debug("provider result below acceptance threshold",
				"provider", p.Name(),
				"query", normalized,
				"confidence", result.Confidence,
			)
			continue
		}

		if opts.IncludeAlternatives && IsAmbiguous(normalized) {
			result.Alternatives = e.findAlternatives(ctx, normalized, *result, opts)
		}

		e.cache.Set(ctx, key, *result)
		e.metrics.ResolveRequests.WithLabelValues("resolved").Inc()
		e.publish(ctx, query, normalized, result, false)
		return result, nil
	}

	e.metrics.ResolveRequests.WithLabelValues("unresolved").Inc()
	e.publish(ctx, query, normalized, nil, false)
	return nil, nil
}

// publish emits a resolution event to the sink, best-effort.
func (e *Engine) publish(ctx context.Context, query, normalized string, result *domain.GeocodeResult, cacheHit bool) {
	if e.sink == nil {
		return
	}
	event := domain.NewResolutionEvent("", query, normalized, result, cacheHit, time.Now().UTC())
	if err := e.sink.Publish(ctx, event); err != nil {
		e.logger.Warn("resolution event publish failed", "query", query, "error", err)
	}
}
