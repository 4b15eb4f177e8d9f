package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "test-api-key"

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:     testKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func berlinResult() geocodeResult {
	r := geocodeResult{
		FormattedAddress: "Berlin, Germany",
		Types:            []string{"locality", "political"},
		AddressComponents: []addressComponent{
			{LongName: "Berlin", ShortName: "Berlin", Types: []string{"locality", "political"}},
			{LongName: "Berlin", ShortName: "BE", Types: []string{"administrative_area_level_1"}},
			{LongName: "Germany", ShortName: "DE", Types: []string{"country", "political"}},
		},
	}
	r.Geometry.Location.Lat = 52.52
	r.Geometry.Location.Lng = 13.405
	r.Geometry.LocationType = "APPROXIMATE"
	return r
}

func TestResolve_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "berlin", r.URL.Query().Get("address"))
		assert.Equal(t, testKey, r.URL.Query().Get("key"))

		require.NoError(t, json.NewEncoder(w).Encode(geocodeResponse{
			Status:  "OK",
			Results: []geocodeResult{berlinResult()},
		}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.Resolve(context.Background(), "berlin", domain.GeocodeOptions{})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Berlin", result.Location)
	assert.Equal(t, domain.PlaceTypeCity, result.Type)
	assert.Equal(t, 52.52, result.Coordinates.Lat)
	assert.Equal(t, 13.405, result.Coordinates.Lng)
	assert.Equal(t, "de", result.Components.CountryCode)
	assert.Equal(t, "Germany", result.Components.Country)
	assert.Equal(t, []string{"googlemaps"}, result.Providers)
	// Verbatim containment, APPROXIMATE relevance 0.8 → 0.8*0.95.
	assert.InDelta(t, 0.8*0.95, result.Confidence, 1e-9)
}

func TestResolve_ZeroResultsIsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(geocodeResponse{Status: "ZERO_RESULTS"}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	result, err := c.Resolve(context.Background(), "narnia", domain.GeocodeOptions{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestResolve_ErrorStatusIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(geocodeResponse{
			Status:  "REQUEST_DENIED",
			Results: []geocodeResult{berlinResult()},
		}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Resolve(context.Background(), "berlin", domain.GeocodeOptions{})
	require.Error(t, err)

	var provErr *domain.ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, "googlemaps", provErr.Provider)
}

func TestResolve_MissingKeyFailsFast(t *testing.T) {
	c := testClient("http://localhost:0")
	c.apiKey = ""

	_, err := c.Resolve(context.Background(), "berlin", domain.GeocodeOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestResolve_RegionBias(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "de", r.URL.Query().Get("region"))
		require.NoError(t, json.NewEncoder(w).Encode(geocodeResponse{Status: "ZERO_RESULTS"}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Resolve(context.Background(), "berlin", domain.GeocodeOptions{PreferredCountry: "DE"})
	require.NoError(t, err)
}

func TestPickBest_LocalityBeatsStreetAddress(t *testing.T) {
	street := berlinResult()
	street.Types = []string{"street_address"}
	street.FormattedAddress = "Berliner Str. 1, Somewhere"
	street.Geometry.LocationType = "ROOFTOP"

	city := berlinResult()

	best := pickBest([]geocodeResult{street, city}, "")
	require.NotNil(t, best)
	assert.Equal(t, "Berlin, Germany", best.FormattedAddress)
}

func TestPickBest_PreferredCountryWins(t *testing.T) {
	de := berlinResult()

	us := berlinResult()
	us.FormattedAddress = "Berlin, NH, USA"
	us.AddressComponents[2] = addressComponent{LongName: "United States", ShortName: "US", Types: []string{"country"}}

	best := pickBest([]geocodeResult{de, us}, "us")
	require.NotNil(t, best)
	assert.Equal(t, "Berlin, NH, USA", best.FormattedAddress)
}
