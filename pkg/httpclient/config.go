package httpclient

import (
	"fmt"
	"time"
)

// Config controls timeout, retry, and identification behavior for clients
// built by New.
type Config struct {
	// Timeout bounds the whole request, retries included. Must be > 0.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the initial attempt.
	// Zero disables the retry layer entirely.
	RetryAttempts int

	// RetryBackoff is the delay before the first retry. Subsequent retries
	// back off exponentially from here. Required when RetryAttempts > 0.
	RetryBackoff time.Duration

	// MaxBackoff caps the per-retry delay, including delays requested by a
	// Retry-After header. Must be >= RetryBackoff.
	MaxBackoff time.Duration

	// UserAgent is stamped on outbound requests that don't already carry
	// one. Required.
	UserAgent string

	// AllowNonIdempotentRetry extends retries to POST, PUT, PATCH, and
	// DELETE. Off by default: only GET, HEAD, and OPTIONS are retried.
	AllowNonIdempotentRetry bool
}

// DefaultConfig returns the defaults used across the harness: 30s total
// timeout, three retries starting at 100ms, capped at 30s.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  100 * time.Millisecond,
		MaxBackoff:    30 * time.Second,
		UserAgent:     "mcp-evals-http-client/1.0",
	}
}

// Validate reports the first invalid field, if any.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return fmt.Errorf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)
		}
		if c.MaxBackoff < c.RetryBackoff {
			return fmt.Errorf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
		}
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required and must be non-empty")
	}
	return nil
}
