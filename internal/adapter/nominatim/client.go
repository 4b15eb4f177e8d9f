// Package nominatim implements domain.Provider using the OpenStreetMap
// Nominatim search API. It is the free fallback behind Mapbox and also
// serves the disambiguation finder's country-biased probes.
package nominatim

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

const providerName = "nominatim"

const defaultCandidateLimit = 5

// Client implements domain.Provider using the Nominatim search API.
// Nominatim requires no credential but does require an identifying
// User-Agent per the OSM usage policy.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Name() string { return providerName }

// Resolve geocodes query against Nominatim's /search endpoint.
func (c *Client) Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	if c.userAgent == "" {
		// The OSM policy treats an unidentified client as misconfigured.
		return nil, domain.NewProviderError(providerName, domain.ErrMissingCredential)
	}

	limit := opts.MaxResults
	if limit <= 0 || limit > defaultCandidateLimit {
		limit = defaultCandidateLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("accept-language", "en")
	if opts.PreferredCountry != "" {
		params.Set("countrycodes", strings.ToLower(opts.PreferredCountry))
	}

	u := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	start := time.Now()
	places, err := c.doRequest(ctx, u)
	c.metrics.ProviderDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, domain.NewProviderError(providerName, err)
	}

	best := pickBest(places, strings.ToLower(opts.PreferredCountry))
	if best == nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "no_match").Inc()
		return nil, nil
	}

	result, err := normalizePlace(query, *best)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, domain.NewProviderError(providerName, err)
	}

	c.metrics.ProviderRequests.WithLabelValues(providerName, "success").Inc()
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return places, nil
}

// pickBest prefers settlements (city/town/village) over street-level hits,
// then higher importance; a preferred-country match wins outright.
func pickBest(places []place, preferredCountry string) *place {
	var best *place
	bestRank := -1
	bestImportance := -1.0
	bestCountry := false

	for i := range places {
		p := &places[i]
		countryMatch := preferredCountry != "" && strings.ToLower(p.Address.CountryCode) == preferredCountry
		rank := adminRank(p)

		switch {
		case countryMatch && !bestCountry:
			// accept
		case bestCountry && !countryMatch:
			continue
		case rank < bestRank:
			continue
		case rank == bestRank && p.Importance <= bestImportance:
			continue
		}
		best, bestRank, bestImportance, bestCountry = p, rank, p.Importance, countryMatch
	}
	return best
}

func adminRank(p *place) int {
	switch p.AddressType {
	case "city", "town", "village":
		return 2
	case "road", "house", "building":
		return 0
	default:
		return 1
	}
}

// normalizePlace converts a Nominatim place into the canonical result.
// Coordinates arrive as strings in this API.
func normalizePlace(query string, p place) (*domain.GeocodeResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}

	location := p.Name
	if location == "" {
		location = firstDisplaySegment(p.DisplayName)
	}

	result := &domain.GeocodeResult{
		Location:    location,
		Confidence:  score.Score(query, p.DisplayName, relevance(p.Importance)),
		Coordinates: domain.Coordinates{Lat: lat, Lng: lng},
		DisplayName: p.DisplayName,
		Type:        placeType(p),
		Providers:   []string{providerName},
		Components: domain.AddressComponents{
			City:         cityOf(p),
			State:        p.Address.State,
			Country:      p.Address.Country,
			CountryCode:  strings.ToLower(p.Address.CountryCode),
			PostalCode:   p.Address.Postcode,
			Neighborhood: p.Address.Suburb,
		},
	}
	return result, nil
}

// relevance maps Nominatim's open-ended importance (~0.3–1.3 in practice)
// into the [0,1] range the scorer expects. Settlement importance clusters
// around 0.5–0.8, so a plain clamp after a modest lift keeps city queries
// from being punished for Nominatim's conservative scale.
func relevance(importance float64) float64 {
	v := importance + 0.2
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func placeType(p place) domain.PlaceType {
	switch p.AddressType {
	case "city", "town", "village":
		return domain.PlaceTypeCity
	case "suburb", "neighbourhood", "quarter":
		return domain.PlaceTypeNeighborhood
	case "country":
		return domain.PlaceTypeCountry
	case "state", "region", "county", "province":
		return domain.PlaceTypeRegion
	}
	if p.Class == "tourism" || p.Class == "historic" || p.Class == "leisure" {
		return domain.PlaceTypeLandmark
	}
	return ""
}

func cityOf(p place) string {
	switch {
	case p.Address.City != "":
		return p.Address.City
	case p.Address.Town != "":
		return p.Address.Town
	case p.Address.Village != "":
		return p.Address.Village
	}
	return ""
}

func firstDisplaySegment(displayName string) string {
	if i := strings.IndexByte(displayName, ','); i > 0 {
		return displayName[:i]
	}
	return displayName
}

// Nominatim API response types.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Class       string  `json:"class"`
	Type        string  `json:"type"`
	AddressType string  `json:"addresstype"`
	Importance  float64 `json:"importance"`
	Address     struct {
		Suburb      string `json:"suburb"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}
