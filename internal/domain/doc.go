// Package domain models place resolution for the travel-search platform.
//
// # Problem
//
// Free-text place names are ambiguous ("Paris" the city in France, or the
// one in Texas?), typo-prone ("Mami" for Miami), and no single geocoding
// provider is authoritative or always available. Several downstream
// features (query understanding, listing search, disambiguation UI) need a
// single reliable answer to "what place does the user mean?", so resolution
// is centralized here.
//
// # Canonical result
//
// Every provider response is reduced to a [GeocodeResult] before it crosses
// an adapter boundary; provider-specific field names never leak past the
// adapter that produced them. A result carries:
//
//   - a short place name and a full human-readable display name
//   - WGS-84 coordinates
//   - partial address components (providers populate what they have)
//   - a closed place-type enumeration (city, neighborhood, landmark,
//     region, country) derived only from provider metadata, never guessed
//   - a confidence score in [0, 0.95], combining query/result string
//     overlap with the provider's own relevance signal (1.0 is reserved
//     for future exact-ID matches and is never emitted)
//
// # Providers
//
// A [Provider] either returns a result, returns nil (the place genuinely
// was not found, a normal outcome rather than an error), or fails with a
// [*ProviderError] (transport failure, non-2xx status, missing credential).
// The distinction matters: the fallback chain logs and skips an unusable
// provider but treats "no match" as a signal to keep trying with the same
// confidence bar.
//
// # Confidence conventions
//
// Thresholds are configuration, not architecture. The reference defaults:
//
//	accept:       > 0.5   fallback chain stops at the first result above this
//	fuzzy trigger: < 0.7  callers retry via fuzzy correction below this
//	fuzzy keep:   > 0.6   corrected candidates below this are discarded
//	high-confidence cache: ≥ 0.8  cached for the extended TTL
package domain
