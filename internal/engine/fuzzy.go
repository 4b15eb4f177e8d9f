package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/normalize"
)

// correctedQualifier is appended to a corrected result's location label so
// the disambiguation UI can present it distinctly from a direct match.
const correctedQualifier = " (did you mean?)"

const (
	maxFuzzyCandidates = 3
	maxFuzzyResults    = 5
	// Spacing variants only make sense for queries long enough to be a
	// concatenated city+suffix typo ("newyork", "sanfrancisco").
	minCompoundLength = 7
)

// typoCorrections maps well-known misspellings to the intended place,
// matched by substring against the lowercased query. Like the ambiguity
// allow-list, extending coverage is a data change.
var typoCorrections = map[string]string{
	"mami":          "Miami",
	"miamia":        "Miami",
	"new yrok":      "New York",
	"new yourk":     "New York",
	"los angelos":   "Los Angeles",
	"los angles":    "Los Angeles",
	"san fransisco": "San Francisco",
	"san francsico": "San Francisco",
	"chigaco":       "Chicago",
	"chicgo":        "Chicago",
	"pheonix":       "Phoenix",
	"seatle":        "Seattle",
	"filadelfia":    "Philadelphia",
	"las vagas":     "Las Vegas",
	"barclona":      "Barcelona",
	"amsterdm":      "Amsterdam",
	"lisbona":       "Lisbon",
	"pragu":         "Prague",
	"istambul":      "Istanbul",
}

// ResolveFuzzy recovers a usable result from a misspelled or malformed
// query. It is an explicit secondary operation: callers invoke it when
// Resolve returned nil or a confidence below their fuzzy trigger; the
// engine never runs it implicitly.
func (e *Engine) ResolveFuzzy(ctx context.Context, query string, opts domain.GeocodeOptions) ([]domain.GeocodeResult, error) {
	var results []domain.GeocodeResult

	// The unmodified query gets one more attempt before any correction.
	// A direct match is surfaced unannotated even when weak, so callers
	// can still present it as a low-confidence suggestion.
	direct, err := e.Resolve(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if direct != nil {
		results = append(results, *direct)
	}

	candidateOpts := opts
	candidateOpts.FuzzyMatching = true

	var corrected []domain.GeocodeResult
	for _, candidate := range correctionCandidates(query) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := e.Resolve(ctx, candidate, candidateOpts)
		if err != nil {
			return nil, err
		}
		if r == nil || r.Confidence <= e.cfg.FuzzyKeepConfidence {
			continue
		}
		if direct != nil && r.DisplayName == direct.DisplayName {
			continue
		}
		r.Corrected = true
		r.Location += correctedQualifier
		corrected = append(corrected, *r)
	}

	if len(corrected) > 0 {
		e.metrics.FuzzyRequests.WithLabelValues("recovered").Inc()
	} else if len(results) == 0 {
		e.metrics.FuzzyRequests.WithLabelValues("empty").Inc()
	}

	// Direct match first, corrected guesses by confidence descending.
	sort.Slice(corrected, func(i, j int) bool {
		return corrected[i].Confidence > corrected[j].Confidence
	})
	results = append(results, corrected...)
	if len(results) > maxFuzzyResults {
		results = results[:maxFuzzyResults]
	}
	return results, nil
}

// correctionCandidates generates typo-corrected variants of query from two
// independent sources: the fixed typo table and mechanical spacing
// variants. Candidates are deduplicated and capped at maxFuzzyCandidates.
func correctionCandidates(query string) []string {
	normalized := normalize.Normalize(query)
	lower := strings.ToLower(normalized)

	seen := map[string]struct{}{lower: {}}
	var candidates []string
	add := func(c string) {
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup || c == "" {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, c)
	}

	// Sorted iteration keeps candidate order, and therefore the cap,
	// deterministic.
	typos := make([]string, 0, len(typoCorrections))
	for typo := range typoCorrections {
		typos = append(typos, typo)
	}
	sort.Strings(typos)
	for _, typo := range typos {
		if strings.Contains(lower, typo) {
			add(typoCorrections[typo])
		}
	}

	// Spacing variants: collapse all internal whitespace, and for
	// compound-looking single tokens split 3–5 runes from the end
	// (covers concatenated city+suffix typos like "newyork").
	condensed := strings.Join(strings.Fields(normalized), "")
	add(condensed)
	if !strings.ContainsAny(normalized, " \t") {
		runes := []rune(normalized)
		if len(runes) >= minCompoundLength {
			for offset := 3; offset <= 5; offset++ {
				split := len(runes) - offset
				add(string(runes[:split]) + " " + string(runes[split:]))
			}
		}
	}

	if len(candidates) > maxFuzzyCandidates {
		candidates = candidates[:maxFuzzyCandidates]
	}
	return candidates
}
