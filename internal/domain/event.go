package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// QueryEvent is a raw location-query message consumed from the source topic
// in batch mode. Upstream services (query analyzers, listing-search
// orchestration) publish the place text they extracted together with the
// options they want applied.
type QueryEvent struct {
	Query               string `json:"query"`
	PreferredCountry    string `json:"preferred_country,omitempty"`
	IncludeAlternatives bool   `json:"include_alternatives,omitempty"`

	// RequestID correlates the resolution event back to the producer.
	RequestID string `json:"request_id,omitempty"`
}

// RawMessage is an unprocessed message from the source topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ParseQueryEvent decodes and validates a raw source-topic message.
func ParseQueryEvent(raw RawMessage) (QueryEvent, error) {
	var event QueryEvent
	if err := json.Unmarshal(raw.Value, &event); err != nil {
		return QueryEvent{}, fmt.Errorf("parse query event: %w", err)
	}
	if strings.TrimSpace(event.Query) == "" {
		return QueryEvent{}, fmt.Errorf("query event at %s/%d/%d has no query text", raw.Topic, raw.Partition, raw.Offset)
	}
	return event, nil
}

// ResolutionEvent is the serialized outcome of one resolution, published to
// the sink topic for analytics and asynchronous consumers.
type ResolutionEvent struct {
	RequestID       string  `json:"request_id,omitempty"`
	Query           string  `json:"query"`
	NormalizedQuery string  `json:"normalized_query"`
	Resolved        bool    `json:"resolved"`
	Location        string  `json:"location,omitempty"`
	DisplayName     string  `json:"display_name,omitempty"`
	Lat             float64 `json:"lat,omitempty"`
	Lng             float64 `json:"lng,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	Provider        string  `json:"provider,omitempty"`
	CountryCode     string  `json:"country_code,omitempty"`
	CacheHit        bool    `json:"cache_hit"`
	Alternatives    int     `json:"alternatives,omitempty"`

	ResolvedAt time.Time `json:"resolved_at"`
}

// NewResolutionEvent builds the sink-topic record for one resolution
// outcome. result may be nil for an unresolved query; that still yields a
// publishable event so consumers observe the miss.
func NewResolutionEvent(requestID, query, normalizedQuery string, result *GeocodeResult, cacheHit bool, resolvedAt time.Time) ResolutionEvent {
	event := ResolutionEvent{
		RequestID:       requestID,
		Query:           query,
		NormalizedQuery: normalizedQuery,
		CacheHit:        cacheHit,
		ResolvedAt:      resolvedAt,
	}
	if result != nil {
		event.Resolved = true
		event.Location = result.Location
		event.DisplayName = result.DisplayName
		event.Lat = result.Coordinates.Lat
		event.Lng = result.Coordinates.Lng
		event.Confidence = result.Confidence
		event.CountryCode = result.Components.CountryCode
		event.Alternatives = len(result.Alternatives)
		if len(result.Providers) > 0 {
			event.Provider = result.Providers[0]
		}
	}
	return event
}

// ResolutionSink receives resolution events. Publishing is best-effort;
// the engine logs and continues when a sink write fails.
type ResolutionSink interface {
	Publish(ctx context.Context, event ResolutionEvent) error
}
