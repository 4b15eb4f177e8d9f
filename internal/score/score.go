// Package score computes the confidence of a geocoding result against the
// query that produced it. Score is a pure function so the same inputs
// always produce the same confidence, regardless of which provider or
// resolution path invoked it.
package score

import (
	"math"
	"strings"
)

// Headroom caps: 1.0 is never emitted, leaving room for future exact-ID
// matches to outrank every string-derived score.
const (
	maxScore            = 0.95
	maxSingleTokenBoost = 0.9
	maxTokenRatioScore  = 0.85
	singleTokenBoost    = 0.2
)

// Score rates how well displayName answers query, weighted by the
// provider-reported relevance. The result is clamped to [0, 0.95].
//
// A verbatim phrase containment is checked before tokenized matching: a
// display name that contains the whole query is stronger evidence than any
// token-overlap ratio, so it short-circuits at min(0.95, relevance*0.95).
func Score(query, displayName string, relevance float64) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	d := strings.ToLower(strings.TrimSpace(displayName))
	if q == "" || d == "" {
		return 0
	}

	relevance = clamp01(relevance)

	if strings.Contains(d, q) {
		return math.Min(maxScore, relevance*maxScore)
	}

	qTokens := strings.Fields(q)
	dTokens := tokenize(d)

	matched := 0
	for _, qt := range qTokens {
		for _, dt := range dTokens {
			if strings.Contains(dt, qt) || strings.Contains(qt, dt) {
				matched++
				break
			}
		}
	}
	ratio := float64(matched) / float64(len(qTokens))
	base := ratio * relevance

	if len(qTokens) == 1 {
		for _, dt := range dTokens {
			if dt == qTokens[0] {
				return math.Min(maxSingleTokenBoost, base+singleTokenBoost)
			}
		}
	}
	return math.Min(maxTokenRatioScore, base)
}

// tokenize splits a display name on whitespace and commas so "Austin,
// Texas, United States" yields bare tokens comparable to query words.
// Splitting on commas is what lets a one-word query like "austin" earn the
// single-token exact-equality boost against comma-joined display names.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
