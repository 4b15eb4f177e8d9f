package domain

import "slices"

// PlaceType classifies a resolved place. The enumeration is closed: a value
// is assigned only when provider metadata supports it, never guessed.
type PlaceType string

const (
	PlaceTypeCity         PlaceType = "city"
	PlaceTypeNeighborhood PlaceType = "neighborhood"
	PlaceTypeLandmark     PlaceType = "landmark"
	PlaceTypeRegion       PlaceType = "region"
	PlaceTypeCountry      PlaceType = "country"
)

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AddressComponents holds the structured address parts a provider reported.
// Providers rarely fill every field; absent parts stay empty.
type AddressComponents struct {
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"` // ISO 3166-1 alpha-2, lowercase
	PostalCode   string `json:"postalCode,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// GeocodeOptions tune a single resolution attempt. Immutable per attempt.
type GeocodeOptions struct {
	// PreferredCountry biases candidate selection: a candidate whose country
	// code matches wins over the ranked default regardless of relevance.
	PreferredCountry string

	// MaxResults caps the upstream candidate list (providers default to a
	// small value when zero).
	MaxResults int

	// IncludeAlternatives enables disambiguation lookups for queries on the
	// known-ambiguous allow-list.
	IncludeAlternatives bool

	// FuzzyMatching marks the attempt as originating from typo correction.
	FuzzyMatching bool

	// BiasLocation nudges providers that support proximity biasing.
	BiasLocation *Coordinates
}

// GeocodeResult is the canonical output of a resolution, independent of
// which provider produced it. It is not mutated after construction except
// to attach Alternatives before caching.
type GeocodeResult struct {
	// Location is the short place name, e.g. "Austin". Fuzzy correction
	// appends a "did you mean" qualifier so callers can present corrected
	// guesses distinctly.
	Location string `json:"location"`

	// Confidence is in [0, 0.95]. See the package documentation for the
	// threshold conventions.
	Confidence float64 `json:"confidence"`

	Coordinates Coordinates       `json:"coordinates"`
	Components  AddressComponents `json:"components,omitempty"`

	// DisplayName is the full human-readable address string.
	DisplayName string `json:"displayName"`

	Type PlaceType `json:"type,omitempty"`

	// Providers lists the provider names that contributed, normally length
	// one. The engine never merges evidence across providers.
	Providers []string `json:"providers"`

	// Alternatives is populated only when disambiguation ran.
	Alternatives []GeocodeResult `json:"alternatives,omitempty"`

	// Corrected is true when the result came from a typo-corrected variant
	// of the original query.
	Corrected bool `json:"corrected,omitempty"`
}

// Clone returns a deep copy so cached results keep value-copy semantics:
// mutation by a caller must not corrupt the cache.
func (r GeocodeResult) Clone() GeocodeResult {
	out := r
	out.Providers = slices.Clone(r.Providers)
	if r.Alternatives != nil {
		out.Alternatives = make([]GeocodeResult, len(r.Alternatives))
		for i := range r.Alternatives {
			out.Alternatives[i] = r.Alternatives[i].Clone()
		}
	}
	return out
}
