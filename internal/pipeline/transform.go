package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/roamstack/place-resolver/internal/domain"
	"github.com/roamstack/place-resolver/internal/normalize"
)

// Resolver is the engine surface the pipeline needs.
type Resolver interface {
	Resolve(ctx context.Context, query string, opts domain.GeocodeOptions) (*domain.GeocodeResult, error)
}

// QueryTransformer implements Transformer by resolving the query text
// carried in each source message.
type QueryTransformer struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewTransformer creates a QueryTransformer backed by the given resolver.
func NewTransformer(resolver Resolver, logger *slog.Logger) *QueryTransformer {
	return &QueryTransformer{
		resolver: resolver,
		logger:   logger,
	}
}

// Transform parses the query event and resolves it. An unresolvable query
// still produces an event with Resolved false; only malformed messages and
// context cancellation are errors.
func (t *QueryTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.ResolutionEvent, error) {
	query, err := domain.ParseQueryEvent(raw)
	if err != nil {
		return domain.ResolutionEvent{}, err
	}

	opts := domain.GeocodeOptions{
		PreferredCountry:    query.PreferredCountry,
		IncludeAlternatives: query.IncludeAlternatives,
	}
	result, err := t.resolver.Resolve(ctx, query.Query, opts)
	if err != nil {
		return domain.ResolutionEvent{}, err
	}

	normalized := normalize.Normalize(query.Query)
	return domain.NewResolutionEvent(query.RequestID, query.Query, normalized, result, false, time.Now().UTC()), nil
}
