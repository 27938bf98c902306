package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// New builds an *http.Client from cfg. The returned client layers, from the
// wire up: a pooled TLS transport, a logging transport that stamps the
// User-Agent and propagates trace context, and (when cfg.RetryAttempts > 0)
// a retry transport with exponential backoff.
//
// Returns an error if cfg fails validation.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var rt http.RoundTripper = newLoggingTransport(newBaseTransport(cfg), cfg.UserAgent)
	if cfg.RetryAttempts > 0 {
		rt = newRetryTransport(rt, cfg)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}

// newBaseTransport builds the underlying pooled transport. TLS 1.2 is the
// floor; proxies are honored from the environment so the harness works behind
// corporate egress when calling hosted LLM APIs.
func newBaseTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		ForceAttemptHTTP2: true,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
