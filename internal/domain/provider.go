package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingCredential indicates an adapter was constructed without the
// credential its upstream API requires. Adapters fail fast with it (wrapped
// in a ProviderError) before any network call, so logs distinguish
// "provider misconfigured" from "provider had no match".
var ErrMissingCredential = errors.New("missing provider credential")

// Provider resolves a normalized place-name query against one upstream
// geocoding API.
//
// The three outcomes are distinct:
//
//	result, nil  the provider matched the query
//	nil, nil     the provider is healthy but found nothing
//	nil, error   the provider is unusable (*ProviderError)
type Provider interface {
	// Name identifies the provider in results, logs, and metrics.
	Name() string

	// Resolve geocodes query. Implementations must bound the call with a
	// timeout and honor ctx cancellation.
	Resolve(ctx context.Context, query string, opts GeocodeOptions) (*GeocodeResult, error)
}

// ProviderError wraps a transport failure, non-2xx response, or missing
// credential for a single provider. The fallback chain recovers it locally;
// it never reaches a caller of the engine.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with the provider's name.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}
