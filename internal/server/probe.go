// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/EbramTawfik/mcp-evals/pkg/httpclient"
)

const (
	// defaultProbeInterval is the pause between readiness probe attempts.
	defaultProbeInterval = 2 * time.Second

	// defaultProbeAttempts is the probe ceiling, roughly 30s total.
	defaultProbeAttempts = 15
)

// pingBody is the minimal JSON-RPC probe POSTed to a server's endpoint. Any
// HTTP response at all, including an error status, counts as ready: the probe
// checks that the socket accepts connections and speaks HTTP, not that the
// server answers pings correctly.
const pingBody = `{"jsonrpc":"2.0","method":"ping","id":1}`

// Prober polls an HTTP endpoint until the server behind it accepts requests.
// The zero value uses the production interval and attempt ceiling.
type Prober struct {
	// Interval between probe attempts. Defaults to 2s.
	Interval time.Duration

	// Attempts is the probe ceiling. Defaults to 15.
	Attempts int

	// Client is the HTTP client used for probes (optional). The default has
	// retries disabled; the attempt loop is the retry policy here.
	Client *http.Client

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// IsServerReady reports whether the endpoint responded to a protocol-shaped
// ping within the attempt budget. Request errors are treated as "not up yet"
// and retried; only context cancellation aborts the loop early.
func (p *Prober) IsServerReady(ctx context.Context, url string) bool {
	interval := p.Interval
	if interval <= 0 {
		interval = defaultProbeInterval
	}
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = defaultProbeAttempts
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := p.Client
	if client == nil {
		client = defaultProbeClient()
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(interval):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(pingBody))
		if err != nil {
			return false
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			logger.Debug("readiness probe failed",
				"url", url,
				"attempt", attempt,
				"error", err,
			)
			continue
		}
		resp.Body.Close()

		logger.Debug("readiness probe succeeded",
			"url", url,
			"attempt", attempt,
			"status", resp.StatusCode,
		)
		return true
	}

	return false
}

// defaultProbeClient bounds each attempt to one interval so a black-hole
// connect cannot stall the loop past its budget.
func defaultProbeClient() *http.Client {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = defaultProbeInterval
	cfg.RetryAttempts = 0
	client, err := httpclient.New(cfg)
	if err != nil {
		return &http.Client{Timeout: defaultProbeInterval}
	}
	return client
}
