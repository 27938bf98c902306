package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// retryTransport replays failed requests with exponential backoff. It sits
// outermost in the transport stack so each attempt is logged individually.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	minDelay   time.Duration
	maxDelay   time.Duration
	retryAll   bool
}

func newRetryTransport(base http.RoundTripper, cfg Config) *retryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{
		base:       base,
		maxRetries: cfg.RetryAttempts,
		minDelay:   cfg.RetryBackoff,
		maxDelay:   cfg.MaxBackoff,
		retryAll:   cfg.AllowNonIdempotentRetry,
	}
}

// RoundTrip implements http.RoundTripper. Transient failures (connection
// errors, timeouts, 5xx, 408, 429) are retried up to maxRetries times;
// everything else is returned as-is after the first attempt.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.retryableMethod(req.Method) {
		return t.base.RoundTrip(req)
	}

	attempt := req
	for retry := 0; ; retry++ {
		resp, err := t.base.RoundTrip(attempt)

		transient := (err != nil && transientError(err)) ||
			(err == nil && transientStatus(resp.StatusCode))
		if !transient || retry == t.maxRetries {
			return resp, err
		}

		// The body of the attempt just made is consumed. A request whose
		// body cannot be replayed ends here with whatever we got.
		next, ok := replay(req)
		if !ok {
			return resp, err
		}

		delay := t.delay(retry, resp)
		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
		attempt = next
	}
}

// retryableMethod reports whether requests with this method may be replayed.
// Only GET, HEAD, and OPTIONS qualify unless retryAll is set.
func (t *retryTransport) retryableMethod(method string) bool {
	if t.retryAll {
		return true
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// replay clones req with a fresh body for the next attempt. Reports false
// when the body cannot be reconstructed.
func replay(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

// transientStatus reports whether an HTTP status is worth another attempt.
func transientStatus(code int) bool {
	if code >= 500 && code <= 599 {
		return true
	}
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// transientError reports whether err is worth another attempt. Context
// cancellation is terminal; timeouts and connection-level failures are not.
func transientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return transientError(urlErr.Err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, symptom := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure in name resolution",
		"eof",
	} {
		if strings.Contains(msg, symptom) {
			return true
		}
	}
	return false
}

// delay computes the sleep before retry number retry (zero-based). A
// Retry-After header on the previous response overrides the computed
// backoff; either way the result is capped at maxDelay, so a hostile or
// misconfigured server cannot stall the client indefinitely.
func (t *retryTransport) delay(retry int, resp *http.Response) time.Duration {
	d := t.backoff(retry)
	if ra := retryAfter(resp); ra > 0 {
		d = ra
	}
	if d > t.maxDelay {
		d = t.maxDelay
	}
	return d
}

// backoff is exponential from minDelay with up to 20% jitter added.
func (t *retryTransport) backoff(retry int) time.Duration {
	d := float64(t.minDelay) * math.Pow(2, float64(retry))
	if d > float64(t.maxDelay) {
		d = float64(t.maxDelay)
	}
	return time.Duration(d * (1 + 0.2*rand.Float64()))
}

// retryAfter parses a Retry-After header as either delta-seconds or an
// HTTP-date. Returns 0 when absent or unparseable.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
