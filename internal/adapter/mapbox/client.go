// Package mapbox implements domain.Provider using the Mapbox Geocoding API.
// It is the first adapter in the fallback chain: fast, accurate, and paid.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/observability"
	"github.com/roamstack/place-resolver/internal/score"
)

const providerName = "mapbox"

// defaultCandidateLimit asks for enough features to rank candidates when
// the caller does not cap results.
const defaultCandidateLimit = 5

// Client implements domain.Provider using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. The timeout bounds every
// upstream call; a slow Mapbox must not block the whole fallback chain.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Name() string { return providerName }

// Resolve geocodes query and normalizes the best candidate into the
// canonical result type.
func (c *Client) Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	if c.token == "" {
		return nil, domain.NewProviderError(providerName, domain.ErrMissingCredential)
	}

	limit := opts.MaxResults
	if limit <= 0 || limit > defaultCandidateLimit {
		limit = defaultCandidateLimit
	}

	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(limit)},
		"types":        {"country,region,place,locality,neighborhood,poi,address"},
		"language":     {"en"},
	}
	if opts.PreferredCountry != "" {
		params.Set("country", strings.ToLower(opts.PreferredCountry))
	}
	if opts.BiasLocation != nil {
		// Mapbox uses lon,lat order.
		params.Set("proximity", fmt.Sprintf("%.6f,%.6f", opts.BiasLocation.Lng, opts.BiasLocation.Lat))
	}

	u := fmt.Sprintf("%s/%s.json?%s", c.baseURL, url.PathEscape(query), params.Encode())

	start := time.Now()
	resp, err := c.doRequest(ctx, u)
	c.metrics.ProviderDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, domain.NewProviderError(providerName, err)
	}

	best := pickBest(resp.Features, strings.ToLower(opts.PreferredCountry))
	if best == nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "no_match").Inc()
		return nil, nil
	}

	c.metrics.ProviderRequests.WithLabelValues(providerName, "success").Inc()
	result := normalizeFeature(query, *best)
	return &result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &mapboxResp, nil
}

// pickBest ranks candidates: a preferred-country match wins outright, then
// administrative place types (place/locality) beat street addresses, then
// higher relevance wins.
func pickBest(features []feature, preferredCountry string) *feature {
	var best *feature
	bestRank := -1
	bestRelevance := -1.0
	bestCountry := false

	for i := range features {
		f := &features[i]
		countryMatch := preferredCountry != "" && f.countryCode() == preferredCountry
		rank := adminRank(f.PlaceType)

		switch {
		case countryMatch && !bestCountry:
			// fall through to accept
		case bestCountry && !countryMatch:
			continue
		case rank < bestRank:
			continue
		case rank == bestRank && f.Relevance <= bestRelevance:
			continue
		}
		best, bestRank, bestRelevance, bestCountry = f, rank, f.Relevance, countryMatch
	}
	return best
}

// adminRank orders place types by administrative specificity: cities and
// towns over everything else, raw street addresses last.
func adminRank(placeTypes []string) int {
	rank := 1
	for _, pt := range placeTypes {
		switch pt {
		case "place", "locality":
			return 2
		case "address":
			rank = 0
		}
	}
	return rank
}

// normalizeFeature converts a Mapbox feature into the canonical result.
// Mapbox field names stop here; nothing provider-specific leaks out.
func normalizeFeature(query string, f feature) domain.GeocodeResult {
	result := domain.GeocodeResult{
		Location:    f.Text,
		Confidence:  score.Score(query, f.PlaceName, f.Relevance),
		DisplayName: f.PlaceName,
		Type:        placeType(f.PlaceType),
		Providers:   []string{providerName},
	}
	if len(f.Center) == 2 {
		result.Coordinates = domain.Coordinates{Lat: f.Center[1], Lng: f.Center[0]}
	}
	result.Components = components(f)
	return result
}

func placeType(placeTypes []string) domain.PlaceType {
	for _, pt := range placeTypes {
		switch pt {
		case "place", "locality":
			return domain.PlaceTypeCity
		case "neighborhood":
			return domain.PlaceTypeNeighborhood
		case "poi":
			return domain.PlaceTypeLandmark
		case "region", "district":
			return domain.PlaceTypeRegion
		case "country":
			return domain.PlaceTypeCountry
		}
	}
	return ""
}

func components(f feature) domain.AddressComponents {
	var c domain.AddressComponents

	// The feature itself contributes based on its own type.
	switch placeType(f.PlaceType) {
	case domain.PlaceTypeCity:
		c.City = f.Text
	case domain.PlaceTypeNeighborhood:
		c.Neighborhood = f.Text
	case domain.PlaceTypeRegion:
		c.State = f.Text
	case domain.PlaceTypeCountry:
		c.Country = f.Text
		c.CountryCode = strings.ToLower(f.ShortCode)
	}

	// Context entries carry the enclosing hierarchy, identified by ID prefix.
	for _, ctx := range f.Context {
		switch {
		case strings.HasPrefix(ctx.ID, "place."):
			c.City = ctx.Text
		case strings.HasPrefix(ctx.ID, "region."):
			c.State = ctx.Text
		case strings.HasPrefix(ctx.ID, "country."):
			c.Country = ctx.Text
			c.CountryCode = strings.ToLower(ctx.ShortCode)
		case strings.HasPrefix(ctx.ID, "postcode."):
			c.PostalCode = ctx.Text
		case strings.HasPrefix(ctx.ID, "neighborhood."):
			c.Neighborhood = ctx.Text
		}
	}
	return c
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	PlaceType []string  `json:"place_type"`
	Relevance float64   `json:"relevance"`
	ShortCode string    `json:"short_code"` // set on country features
	Context   []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		ShortCode string `json:"short_code"`
	} `json:"context"`
}

func (f *feature) countryCode() string {
	for _, ctx := range f.Context {
		if strings.HasPrefix(ctx.ID, "country.") {
			return strings.ToLower(ctx.ShortCode)
		}
	}
	for _, pt := range f.PlaceType {
		if pt == "country" {
			return strings.ToLower(f.ShortCode)
		}
	}
	return ""
}
