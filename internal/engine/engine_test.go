package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamstack/place-resolver/internal/cache"
	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/observability"
)

// stubProvider is a scripted provider that records every query it receives.
type stubProvider struct {
	name string
	fn   func(query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error)

	mu    sync.Mutex
	calls []string
	opts  []domain.GeocodeOptions
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Resolve(_ context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(query, opts)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// capturingSink records published resolution events.
type capturingSink struct {
	mu     sync.Mutex
	events []domain.ResolutionEvent
}

func (c *capturingSink) Publish(_ context.Context, event domain.ResolutionEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func cityResult(display string, confidence float64, countryCode string, lat, lng float64) *domain.GeocodeResult {
	return &domain.GeocodeResult{
		Location:    display,
		DisplayName: display,
		Confidence:  confidence,
		Coordinates: domain.Coordinates{Lat: lat, Lng: lng},
		Components: domain.AddressComponents{
			City:        strings.SplitN(display, ",", 2)[0],
			CountryCode: countryCode,
		},
		Type:      domain.PlaceTypeCity,
		Providers: []string{"stub"},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, clock clockwork.Clock, sink domain.ResolutionSink, providers ...domain.Provider) *Engine {
	t.Helper()
	c := cache.NewMemory(cache.MemoryConfig{}, clock)
	return New(providers, c, sink, DefaultConfig(), testLogger(), observability.NewMetricsForTesting())
}

func TestResolve_FirstAcceptableProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(q string, _ domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Tokyo, Japan", 0.9, "jp", 35.68, 139.69), nil
	}}
	secondary := &stubProvider{name: "secondary"}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Tokyo, Japan", result.DisplayName)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 0, secondary.callCount(), "chain must stop at the first acceptable result")
}

func TestResolve_FallsBackOnProviderError(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return nil, domain.NewProviderError("primary", errors.New("upstream 500"))
	}}
	secondary := &stubProvider{name: "secondary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Kyoto, Japan", 0.8, "jp", 35.01, 135.77), nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Kyoto", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Kyoto, Japan", result.DisplayName)
	assert.Equal(t, 1, primary.callCount())
	assert.Equal(t, 1, secondary.callCount())
}

func TestResolve_FallsBackOnLowConfidence(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Springfield, Somewhere", 0.3, "us", 39.8, -89.6), nil
	}}
	secondary := &stubProvider{name: "secondary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Springfield, Illinois, United States", 0.7, "us", 39.78, -89.65), nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Springfield", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Springfield, Illinois, United States", result.DisplayName)
}

func TestResolve_AllProvidersFail(t *testing.T) {
	boom := func(name string) func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
			return nil, domain.NewProviderError(name, errors.New("unreachable"))
		}
	}
	primary := &stubProvider{name: "primary", fn: boom("primary")}
	secondary := &stubProvider{name: "secondary", fn: boom("secondary")}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	assert.NoError(t, err, "provider failures must not escape as errors")
	assert.Nil(t, result)
}

func TestResolve_EmptyAfterNormalization(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	result, err := e.Resolve(context.Background(), "hotels near downtown", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, primary.callCount(), "queries that normalize to nothing never reach a provider")
}

func TestResolve_CachesAcceptedResults(t *testing.T) {
	clock := clockwork.NewFakeClock()
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Tokyo, Japan", 0.9, "jp", 35.68, 139.69), nil
	}}
	e := newTestEngine(t, clock, nil, primary)

	first, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	second, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, primary.callCount(), "second resolution must be served from cache")

	// High-confidence entries live 7 days; past that the provider is
	// consulted again.
	clock.Advance(7*24*time.Hour + time.Minute)
	_, err = e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, primary.callCount())
}

func TestResolve_EquivalentQueriesShareCacheEntry(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("New York City, New York, United States", 0.9, "us", 40.71, -74.0), nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	a, err := e.Resolve(context.Background(), "NYC", domain.GeocodeOptions{})
	require.NoError(t, err)
	b, err := e.Resolve(context.Background(), "hotels in New York City", domain.GeocodeOptions{})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, primary.callCount(), "abbreviation and filler variants must hit the same cache entry")
}

func TestResolve_CallersCannotMutateCachedResult(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Tokyo, Japan", 0.9, "jp", 35.68, 139.69), nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	first, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	first.DisplayName = "mutated"
	first.Providers[0] = "mutated"

	second, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Tokyo, Japan", second.DisplayName)
	assert.Equal(t, "stub", second.Providers[0])
}

func TestResolve_AmbiguousQueryGetsAlternatives(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Paris, France", 0.92, "fr", 48.85, 2.35), nil
	}}
	secondary := &stubProvider{name: "secondary", fn: func(q string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		if opts.PreferredCountry == "us" {
			return cityResult("Paris, Texas, United States", 0.6, "us", 33.66, -95.56), nil
		}
		return nil, nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Paris", domain.GeocodeOptions{IncludeAlternatives: true})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Paris, France", result.DisplayName)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, "Paris, Texas, United States", result.Alternatives[0].DisplayName)

	secondary.mu.Lock()
	defer secondary.mu.Unlock()
	for _, opts := range secondary.opts {
		assert.NotEqual(t, "fr", opts.PreferredCountry, "primary result's country must not be probed")
	}
}

func TestResolve_NearbyAlternativeDiscarded(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("London, United Kingdom", 0.92, "gb", 51.5, -0.12), nil
	}}
	// Every probe reports the same London again, offset by a few km.
	secondary := &stubProvider{name: "secondary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("London, United Kingdom", 0.9, "gb", 51.52, -0.1), nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "London", domain.GeocodeOptions{IncludeAlternatives: true})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Alternatives, "duplicates of the primary location are not alternatives")
}

func TestResolve_UnambiguousQuerySkipsProbes(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Tokyo, Japan", 0.92, "jp", 35.68, 139.69), nil
	}}
	secondary := &stubProvider{name: "secondary"}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary, secondary)

	result, err := e.Resolve(context.Background(), "Tokyo", domain.GeocodeOptions{IncludeAlternatives: true})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Alternatives)
	assert.Equal(t, 0, secondary.callCount())
}

func TestResolve_PublishesResolutionEvents(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(string, domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		return cityResult("Tokyo, Japan", 0.9, "jp", 35.68, 139.69), nil
	}}
	sink := &capturingSink{}
	e := newTestEngine(t, clockwork.NewFakeClock(), sink, primary)

	_, err := e.Resolve(context.Background(), "hotels in Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)
	_, err = e.Resolve(context.Background(), "hotels in Tokyo", domain.GeocodeOptions{})
	require.NoError(t, err)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "hotels in Tokyo", sink.events[0].Query)
	assert.Equal(t, "Tokyo", sink.events[0].NormalizedQuery)
	assert.True(t, sink.events[0].Resolved)
	assert.False(t, sink.events[0].CacheHit)
	assert.True(t, sink.events[1].CacheHit)
}

func TestResolveFuzzy_RecoversFromKnownTypo(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(q string, _ domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		if q == "Miami" {
			return cityResult("Miami, Florida, United States", 0.88, "us", 25.76, -80.19), nil
		}
		return nil, nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	results, err := e.ResolveFuzzy(context.Background(), "mami", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Corrected)
	assert.Contains(t, results[0].Location, "did you mean")
	assert.Equal(t, "Miami, Florida, United States", results[0].DisplayName)
}

func TestResolveFuzzy_SplitsConcatenatedNames(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(q string, _ domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		if strings.EqualFold(q, "san diego") {
			return cityResult("San Diego, California, United States", 0.87, "us", 32.72, -117.16), nil
		}
		return nil, nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	results, err := e.ResolveFuzzy(context.Background(), "sandiego", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Corrected)
	assert.Equal(t, "San Diego, California, United States", results[0].DisplayName)
}

func TestResolveFuzzy_DirectMatchListedFirstUnannotated(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(q string, _ domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		switch {
		case strings.EqualFold(q, "Phoenix"):
			return cityResult("Phoenix, Arizona, United States", 0.9, "us", 33.45, -112.07), nil
		case strings.Contains(strings.ToLower(q), "pheonix"):
			return cityResult("Pheonix Lodge, Scotland, United Kingdom", 0.55, "gb", 57.3, -4.4), nil
		}
		return nil, nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	results, err := e.ResolveFuzzy(context.Background(), "pheonix", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Corrected, "direct match comes first, unannotated")
	assert.Equal(t, "Pheonix Lodge, Scotland, United Kingdom", results[0].DisplayName)
	assert.True(t, results[1].Corrected)
	assert.Equal(t, "Phoenix, Arizona, United States", results[1].DisplayName)
}

func TestResolveFuzzy_UnrecoverableQueryYieldsEmptyList(t *testing.T) {
	primary := &stubProvider{name: "primary"}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	results, err := e.ResolveFuzzy(context.Background(), "Narnia", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResolveFuzzy_DropsLowConfidenceCorrections(t *testing.T) {
	primary := &stubProvider{name: "primary", fn: func(q string, _ domain.GeocodeOptions) (*domain.GeocodeResult, error) {
		if q == "Miami" {
			return cityResult("Miami, Florida, United States", 0.55, "us", 25.76, -80.19), nil
		}
		return nil, nil
	}}
	e := newTestEngine(t, clockwork.NewFakeClock(), nil, primary)

	results, err := e.ResolveFuzzy(context.Background(), "mami", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Empty(t, results, "corrections at or below the keep threshold are discarded")
}

func TestIsAmbiguous(t *testing.T) {
	assert.True(t, IsAmbiguous("Paris"))
	assert.True(t, IsAmbiguous("st petersburg"))
	assert.False(t, IsAmbiguous("Tokyo"))
}

func TestDistanceKm(t *testing.T) {
	paris := domain.Coordinates{Lat: 48.8566, Lng: 2.3522}
	london := domain.Coordinates{Lat: 51.5074, Lng: -0.1278}
	assert.InDelta(t, 344, distanceKm(paris, london), 5)
	assert.Zero(t, distanceKm(paris, paris))
}
