package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/roamstack/place-resolver/internal/domain"
)

// Key derives a stable cache key from the normalized query and the options
// that affect the result. This is a soft-failure cache, not a security
// boundary; xxhash over the canonical concatenation is collision-resistant
// enough that two different (query, options) pairs essentially never meet.
func Key(normalizedQuery string, opts domain.GeocodeOptions) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(normalizedQuery))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(opts.PreferredCountry))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(opts.MaxResults))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(opts.IncludeAlternatives))
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(opts.FuzzyMatching))
	if opts.BiasLocation != nil {
		fmt.Fprintf(&b, "|%.4f,%.4f", opts.BiasLocation.Lat, opts.BiasLocation.Lng)
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
