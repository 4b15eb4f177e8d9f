// Package googlemaps implements domain.Provider using the Google Maps
// Geocoding API. It is the optional last adapter in the fallback chain,
// selected purely by priority order like every other adapter; the chain
// never votes across providers.
package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/observability"
	"github.com/roamstack/place-resolver/internal/score"
)

const providerName = "googlemaps"

// Client implements domain.Provider using the Google Maps Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Google Maps geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		metrics: metrics,
		logger:  logger,
	}
}

func (c *Client) Name() string { return providerName }

// Resolve geocodes query. Google returns results ranked by its own
// relevance, so candidate selection only reorders for administrative
// specificity and preferred country.
func (c *Client) Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error) {
	if c.apiKey == "" {
		return nil, domain.NewProviderError(providerName, domain.ErrMissingCredential)
	}

	params := url.Values{}
	params.Set("address", query)
	params.Set("key", c.apiKey)
	params.Set("language", "en")
	if opts.PreferredCountry != "" {
		params.Set("region", strings.ToLower(opts.PreferredCountry))
	}

	u := c.baseURL + "?" + params.Encode()

	start := time.Now()
	resp, err := c.doRequest(ctx, u)
	c.metrics.ProviderDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, domain.NewProviderError(providerName, err)
	}

	if resp.Status != statusOK && resp.Status != statusZeroResults {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "error").Inc()
		return nil, domain.NewProviderError(providerName, fmt.Errorf("google maps status: %s", resp.Status))
	}
	if len(resp.Results) == 0 {
		c.metrics.ProviderRequests.WithLabelValues(providerName, "no_match").Inc()
		return nil, nil
	}

	best := pickBest(resp.Results, strings.ToLower(opts.PreferredCountry))

	c.metrics.ProviderRequests.WithLabelValues(providerName, "success").Inc()
	result := normalizeResult(query, *best)
	return &result, nil
}

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

func (c *Client) doRequest(ctx context.Context, fullURL string) (*geocodeResponse, error) {
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
		return nil, fmt.Errorf("google maps API error: status %d: %s", resp.StatusCode, body)
	}

	var gResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &gResp, nil
}

func pickBest(results []geocodeResult, preferredCountry string) *geocodeResult {
	var best *geocodeResult
	bestRank := -1
	bestRelevance := -1.0
	bestCountry := false

	for i := range results {
		r := &results[i]
		countryMatch := preferredCountry != "" && r.countryCode() == preferredCountry
		rank := adminRank(r.Types)
		rel := locationTypeRelevance(r.Geometry.LocationType)

		switch {
		case countryMatch && !bestCountry:
			// accept
		case bestCountry && !countryMatch:
			continue
		case rank < bestRank:
			continue
		case rank == bestRank && rel <= bestRelevance:
			continue
		}
		best, bestRank, bestRelevance, bestCountry = r, rank, rel, countryMatch
	}
	return best
}

func adminRank(types []string) int {
	rank := 1
	for _, t := range types {
		switch t {
		case "locality", "postal_town", "administrative_area_level_3":
			return 2
		case "street_address", "route", "premise":
			rank = 0
		}
	}
	return rank
}

// locationTypeRelevance maps Google's geometry precision onto the [0,1]
// relevance scale the scorer expects; Google reports no numeric score.
func locationTypeRelevance(locationType string) float64 {
	switch locationType {
	case "ROOFTOP":
		return 1.0
	case "RANGE_INTERPOLATED":
		return 0.9
	case "GEOMETRIC_CENTER":
		return 0.85
	case "APPROXIMATE":
		// Cities geocode as APPROXIMATE; this is the common case, not a
		// defect, hence the mild discount only.
		return 0.8
	default:
		return 0.5
	}
}

// normalizeResult converts a Google result into the canonical type.
func normalizeResult(query string, r geocodeResult) domain.GeocodeResult {
	components := parseComponents(r.AddressComponents)

	location := components.City
	if location == "" {
		location = firstDisplaySegment(r.FormattedAddress)
	}

	return domain.GeocodeResult{
		Location:    location,
		Confidence:  score.Score(query, r.FormattedAddress, locationTypeRelevance(r.Geometry.LocationType)),
		Coordinates: domain.Coordinates{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
		DisplayName: r.FormattedAddress,
		Type:        placeType(r.Types),
		Providers:   []string{providerName},
		Components:  components,
	}
}

func placeType(types []string) domain.PlaceType {
	for _, t := range types {
		switch t {
		case "locality", "postal_town":
			return domain.PlaceTypeCity
		case "neighborhood", "sublocality", "sublocality_level_1":
			return domain.PlaceTypeNeighborhood
		case "point_of_interest", "tourist_attraction", "natural_feature":
			return domain.PlaceTypeLandmark
		case "administrative_area_level_1", "administrative_area_level_2":
			return domain.PlaceTypeRegion
		case "country":
			return domain.PlaceTypeCountry
		}
	}
	return ""
}

func parseComponents(list []addressComponent) domain.AddressComponents {
	var c domain.AddressComponents
	for _, component := range list {
		for _, t := range component.Types {
			switch t {
			case "locality", "postal_town":
				c.City = component.LongName
			case "administrative_area_level_1":
				c.State = component.LongName
			case "country":
				c.Country = component.LongName
				c.CountryCode = strings.ToLower(component.ShortName)
			case "postal_code":
				c.PostalCode = component.LongName
			case "neighborhood":
				c.Neighborhood = component.LongName
			}
		}
	}
	return c
}

func firstDisplaySegment(formatted string) string {
	if i := strings.IndexByte(formatted, ','); i > 0 {
		return formatted[:i]
	}
	return formatted
}

// Google Maps API response types.

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
	Status  string          `json:"status"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
	Types             []string           `json:"types"`
	Geometry          struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

func (r *geocodeResult) countryCode() string {
	for _, component := range r.AddressComponents {
		for _, t := range component.Types {
			if t == "country" {
				return strings.ToLower(component.ShortName)
			}
		}
	}
	return ""
}
