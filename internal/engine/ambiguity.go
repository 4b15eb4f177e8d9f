package engine

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roamstack/place-resolver/internal/domain"
)

// ambiguousPlaces is the allow-list of place names known to exist in more
// than one country. Disambiguation runs only for queries on this list;
// expanding coverage is a data change, not a code change.
var ambiguousPlaces = map[string]struct{}{
	"paris":         {},
	"london":        {},
	"berlin":        {},
	"cambridge":     {},
	"birmingham":    {},
	"manchester":    {},
	"dublin":        {},
	"athens":        {},
	"rome":          {},
	"florence":      {},
	"venice":        {},
	"naples":        {},
	"toledo":        {},
	"valencia":      {},
	"cordoba":       {},
	"santiago":      {},
	"san jose":      {},
	"richmond":      {},
	"springfield":   {},
	"portland":      {},
	"newcastle":     {},
	"perth":         {},
	"hamilton":      {},
	"victoria":      {},
	"alexandria":    {},
	"memphis":       {},
	"odessa":        {},
	"st petersburg": {},
}

// probeCountries is the fixed set of country codes tried for alternatives.
// Ordered by how often travel queries ambiguously land there.
var probeCountries = []string{"us", "gb", "fr", "ca", "au", "it"}

// minAlternativeSeparationKm is the distance below which two candidates are
// considered the same place reported twice.
const minAlternativeSeparationKm = 50.0

// IsAmbiguous reports whether a normalized query is on the disambiguation
// allow-list.
func IsAmbiguous(normalizedQuery string) bool {
	_, ok := ambiguousPlaces[strings.ToLower(normalizedQuery)]
	return ok
}

// findAlternatives issues country-biased lookups against the secondary
// provider for countries other than the primary result's, keeping
// candidates that are materially elsewhere and confident enough. Probes
// run concurrently with a small bound; any single failure is logged and
// the rest proceed (best-effort, partial results accepted).
func (e *Engine) findAlternatives(ctx context.Context, query string, primary domain.GeocodeResult, opts domain.GeocodeOptions) []domain.GeocodeResult {
	if e.altProvider == nil {
		return nil
	}

	primaryCountry := strings.ToLower(primary.Components.CountryCode)

	var (
		mu         sync.Mutex
		candidates []domain.GeocodeResult
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ProbeConcurrency)

	for _, cc := range probeCountries {
		if cc == primaryCountry {
			continue
		}
		g.Go(func() error {
			probeOpts := domain.GeocodeOptions{
				PreferredCountry: cc,
				MaxResults:       1,
			}
			alt, err := e.altProvider.Resolve(ctx, query, probeOpts)
			if err != nil {
				e.metrics.AlternativeProbes.WithLabelValues("error").Inc()
				e.logger.Debug("disambiguation probe failed", "query", query, "country", cc, "error", err)
				return nil // never abort sibling probes
			}
			if alt == nil || alt.Confidence < e.cfg.AlternativeFloor {
				e.metrics.AlternativeProbes.WithLabelValues("discarded").Inc()
				return nil
			}
			if distanceKm(primary.Coordinates, alt.Coordinates) < minAlternativeSeparationKm {
				// Same place found again under a different bias.
				e.metrics.AlternativeProbes.WithLabelValues("discarded").Inc()
				return nil
			}

			e.metrics.AlternativeProbes.WithLabelValues("kept").Inc()
			mu.Lock()
			candidates = append(candidates, *alt)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // probe funcs never return errors

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > e.cfg.MaxAlternatives {
		candidates = candidates[:e.cfg.MaxAlternatives]
	}
	return candidates
}

// distanceKm is the haversine great-circle distance between two points.
func distanceKm(a, b domain.Coordinates) float64 {
	const earthRadiusKm = 6371.0

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
