// Package normalize cleans raw place-name queries before any provider is
// called: travel filler words are stripped and well-known abbreviations
// expanded. Normalize is idempotent and performs no I/O, so the engine can
// apply it unconditionally and use the output as part of the cache key.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fillerPhrases are travel-search noise stripped from queries by
// word-boundary match. Multi-word phrases are listed before their
// single-word prefixes so "close to" is removed as a unit.
var fillerPhrases = []string{
	"close to",
	"next to",
	"places to stay",
	"place to stay",
	"vacation rentals",
	"vacation rental",
	"vacation",
	"rentals",
	"rental",
	"hotels",
	"hotel",
	"airbnb",
	"apartment",
	"accommodation",
	"lodging",
	"near",
	"around",
	"downtown",
	"trip",
	"in",
	"to",
}

// abbreviations expands common shorthand to the canonical city name.
// Expansions must not contain a filler word as a standalone word, or
// Normalize would stop being idempotent. An expansion may contain one of
// the abbreviation words ("Las Vegas" contains "vegas"): a match that
// already sits inside its own spelled-out form is left alone.
var abbreviations = map[string]string{
	// "la" is deliberately absent: it collides with legitimate place names
	// ("La Paz", "La Jolla") under whole-word matching.
	"nyc":    "New York City",
	"sf":     "San Francisco",
	"lv":     "Las Vegas",
	"vegas":  "Las Vegas",
	"nola":   "New Orleans",
	"philly": "Philadelphia",
	"atl":    "Atlanta",
	"chi":    "Chicago",
	"pdx":    "Portland",
	"cdmx":   "Mexico City",
	"bcn":    "Barcelona",
	"ams":    "Amsterdam",
}

var (
	fillerRE   *regexp.Regexp
	abbrevRE   *regexp.Regexp
	spacesRE   = regexp.MustCompile(`\s+`)
	danglingRE = regexp.MustCompile(`^[\s,]+|[\s,]+$`)
)

func init() {
	quoted := make([]string, len(fillerPhrases))
	for i, p := range fillerPhrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	fillerRE = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)

	abbrevs := make([]string, 0, len(abbreviations))
	for a := range abbreviations {
		abbrevs = append(abbrevs, regexp.QuoteMeta(a))
	}
	abbrevRE = regexp.MustCompile(`(?i)\b(` + strings.Join(abbrevs, "|") + `)\b`)
}

// Normalize strips filler words, expands abbreviations, and collapses
// whitespace. Casing is preserved as given; scoring and cache keying are
// case-insensitive. Normalize(Normalize(x)) == Normalize(x) for all x.
func Normalize(raw string) string {
	s := fillerRE.ReplaceAllString(raw, " ")
	s = expandAbbreviations(s)
	s = danglingRE.ReplaceAllString(s, "")
	return spacesRE.ReplaceAllString(s, " ")
}

// expandAbbreviations rewrites each standalone abbreviation to its
// canonical city name, skipping matches that are already part of their own
// expansion so "Las Vegas" never becomes "Las Las Vegas".
func expandAbbreviations(s string) string {
	matches := abbrevRE.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		expansion := abbreviations[strings.ToLower(s[m[0]:m[1]])]
		if withinExpansion(s, m[0], m[1], expansion) {
			continue
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(expansion)
		last = m[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// withinExpansion reports whether s already spells out expansion,
// case-insensitively and starting at a word boundary, across the matched
// word at [start, end).
func withinExpansion(s string, start, end int, expansion string) bool {
	lower := strings.ToLower(s)
	exp := strings.ToLower(expansion)
	from := end - len(exp)
	if from < 0 {
		from = 0
	}
	for i := from; i <= start && i+len(exp) <= len(lower); i++ {
		if lower[i:i+len(exp)] == exp && wordStart(lower, i) {
			return true
		}
	}
	return false
}

func wordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// validate is called from tests to assert the idempotency contract holds
// for every configured expansion.
func validate() error {
	for abbr, expansion := range abbreviations {
		if got := Normalize(expansion); got != expansion {
			return fmt.Errorf("expansion for %q is not a fixed point: %q -> %q", abbr, expansion, got)
		}
	}
	return nil
}
