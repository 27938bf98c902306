package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a provider with client-side request throttling.
// Batch runs can fan dozens of planning and scoring requests at a provider at
// once; the limiter smooths them to a configured rate before they leave the
// process.
type RateLimitedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// NewRateLimitedProvider wraps a provider with a token bucket limiter.
// requestsPerSecond must be positive; burst controls how many requests may
// fire back to back (minimum 1).
func NewRateLimitedProvider(provider Provider, requestsPerSecond float64, burst int) *RateLimitedProvider {
	if burst < 1 {
		burst = 1
	}

	return &RateLimitedProvider{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Name returns the wrapped provider's name.
func (r *RateLimitedProvider) Name() string {
	return r.provider.Name()
}

// Capabilities returns the wrapped provider's capabilities.
func (r *RateLimitedProvider) Capabilities() Capabilities {
	return r.provider.Capabilities()
}

// Complete waits for limiter clearance, then delegates to the wrapped provider.
// Returns the context error if the wait is cancelled.
func (r *RateLimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.provider.Complete(ctx, req)
}
