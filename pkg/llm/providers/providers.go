// Package providers contains concrete implementations of LLM providers.
package providers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/EbramTawfik/mcp-evals/pkg/httpclient"
)

// newProviderHTTPClient builds the shared HTTP client used beneath provider
// SDKs. Retries are disabled here; retry behavior is owned by the
// llm.RetryableProviderWrapper, which understands provider error semantics.
func newProviderHTTPClient(userAgent string) (*http.Client, error) {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 120 * time.Second // LLM requests can take a while
	cfg.UserAgent = userAgent
	cfg.RetryAttempts = 0

	client, err := httpclient.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// suggestionForStatus returns actionable guidance for common provider HTTP
// failures. Returns the empty string for statuses with no standard remedy.
func suggestionForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "Check that your API key is valid and correctly configured"
	case http.StatusForbidden:
		return "Your API key may not have access to this model"
	case http.StatusNotFound:
		return "Check that the configured model name exists for this provider"
	case http.StatusTooManyRequests:
		return "Rate limit exceeded. Lower model.requests_per_second or retry later"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return "The provider is experiencing issues. Retry after a short delay"
	default:
		return ""
	}
}
