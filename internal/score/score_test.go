package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_VerbatimContainment(t *testing.T) {
	// Display name contains the query verbatim → relevance * 0.95.
	got := Score("austin", "Austin, Texas, United States", 1.0)
	assert.InDelta(t, 0.95, got, 1e-9)

	got = Score("san francisco", "San Francisco, California, United States", 0.9)
	assert.InDelta(t, 0.9*0.95, got, 1e-9)
}

func TestScore_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := Score("  AUSTIN ", "austin, texas", 0.8)
	b := Score("austin", "Austin, Texas", 0.8)
	assert.Equal(t, a, b)
}

func TestScore_TokenOverlapRatio(t *testing.T) {
	// "springfield oregon" vs a display name matching only one of two
	// tokens: ratio 0.5 × relevance 0.8 = 0.4.
	got := Score("springfield oregon", "Springfield, Illinois, United States", 0.8)
	assert.InDelta(t, 0.5*0.8, got, 1e-9)
}

func TestScore_SingleTokenCappedAtPointNine(t *testing.T) {
	// A single-token query matching a display token never exceeds 0.9 on
	// the boosted path and never exceeds 0.95 overall.
	got := Score("miami", "Miami Beach, Florida", 1.0)
	assert.LessOrEqual(t, got, 0.95)
	assert.Greater(t, got, 0.0)
}

func TestScore_Bounds(t *testing.T) {
	cases := []struct {
		query, display string
		relevance      float64
	}{
		{"austin", "Austin, Texas", 1.0},
		{"austin", "Austin, Texas", 5.0},    // relevance above 1 is clamped
		{"austin", "Austin, Texas", -3.0},   // negative relevance is clamped
		{"xyz", "completely unrelated", 1.0},
		{"", "Austin", 1.0},
		{"austin", "", 1.0},
		{"a b c d e", "a", 1.0},
	}
	for _, c := range cases {
		got := Score(c.query, c.display, c.relevance)
		assert.GreaterOrEqual(t, got, 0.0, "Score(%q,%q,%v)", c.query, c.display, c.relevance)
		assert.LessOrEqual(t, got, 0.95, "Score(%q,%q,%v)", c.query, c.display, c.relevance)
	}
}

func TestScore_NeverEmitsOne(t *testing.T) {
	got := Score("paris", "paris", 1.0)
	assert.Less(t, got, 1.0)
	assert.InDelta(t, 0.95, got, 1e-9)
}

func TestScore_NoMatchIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Score("narnia", "Oslo, Norway", 1.0))
}

func TestScore_Deterministic(t *testing.T) {
	a := Score("cambridge", "Cambridge, England, United Kingdom", 0.87)
	b := Score("cambridge", "Cambridge, England, United Kingdom", 0.87)
	assert.Equal(t, a, b)
}

func TestScore_ContainmentBeatsTokenRatio(t *testing.T) {
	// Full phrase containment short-circuits even when a token-based score
	// would have been computed differently.
	contained := Score("new york", "New York, United States", 0.6)
	assert.InDelta(t, 0.6*0.95, contained, 1e-9)
}
