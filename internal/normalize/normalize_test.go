package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_StripsFillerWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"vacation prefix", "vacation Austin", "Austin"},
		{"rental suffix", "Austin rentals", "Austin"},
		{"near phrase", "hotels near Austin", "Austin"},
		{"close to phrase", "close to Barcelona", "Barcelona"},
		{"multiple fillers", "vacation rental near downtown Austin", "Austin"},
		{"plain city untouched", "Austin", "Austin"},
		{"filler inside word untouched", "Berlin", "Berlin"}, // "in" is not a standalone word here
		{"trip to", "trip to Lisbon", "Lisbon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_ExpandsAbbreviations(t *testing.T) {
	assert.Equal(t, "New York City", Normalize("nyc"))
	assert.Equal(t, "New York City", Normalize("NYC"))
	assert.Equal(t, "San Francisco", Normalize("sf"))
	assert.Equal(t, "Las Vegas", Normalize("vegas"))
	assert.Equal(t, "New Orleans", Normalize("nola"))
}

func TestNormalize_AbbreviationWholeWordOnly(t *testing.T) {
	// "sf" inside a longer word must not expand.
	assert.Equal(t, "Dusseldorf", Normalize("Dusseldorf"))
	// "nyc" as part of a word stays put.
	assert.Equal(t, "Nycklarby", Normalize("Nycklarby"))
}

func TestNormalize_FillerThenAbbreviation(t *testing.T) {
	assert.Equal(t, "New York City", Normalize("vacation rentals in nyc"))
}

func TestNormalize_CollapsesWhitespaceAndPunctuation(t *testing.T) {
	// Casing is the caller's; only whitespace and punctuation change.
	assert.Equal(t, "san francisco", Normalize("  san   francisco "))
	assert.Equal(t, "Paris", Normalize("near Paris,"))
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"vacation Austin",
		"nyc",
		"hotels near sf",
		"Paris",
		"trip to vegas",
		"Las Vegas",
		"lv",
		"La Paz",
		"New York City",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "Normalize must be a fixed point for %q", in)
	}
}

func TestNormalize_ExpansionsAreFixedPoints(t *testing.T) {
	require.NoError(t, validate())
}

func TestNormalize_SpelledOutNameNotReExpanded(t *testing.T) {
	// "vegas" is an abbreviation key, but inside its own expansion it must
	// stay put.
	assert.Equal(t, "Las Vegas", Normalize("Las Vegas"))
	assert.Equal(t, "Las Vegas", Normalize(Normalize("trip to vegas")))
	assert.Equal(t, "Las Vegas", Normalize(Normalize("lv")))
	// Outside its expansion the word still expands.
	assert.Equal(t, "atlas Las Vegas", Normalize("atlas vegas"))
}

func TestNormalize_DoesNotMangleLaPlaceNames(t *testing.T) {
	assert.Equal(t, "La Paz", Normalize("La Paz"))
	assert.Equal(t, "La Jolla", Normalize("La Jolla"))
}
