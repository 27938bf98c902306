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

// Package metrics exposes Prometheus instrumentation for evaluation runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// evaluationsTotal tracks completed evaluations by status
	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_evals_evaluations_total",
			Help: "Total completed evaluations by status",
		},
		[]string{"status"},
	)

	// evaluationDuration tracks the wall-clock time of full evaluations
	evaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mcp_evals_evaluation_duration_seconds",
			Help:    "Wall-clock duration of full evaluations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// toolCallsTotal tracks tool invocations by status
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_evals_tool_calls_total",
			Help: "Total tool invocations by status",
		},
		[]string{"status"},
	)

	// llmRequestsTotal tracks model requests by provider and purpose
	llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_evals_llm_requests_total",
			Help: "Total model requests by provider and purpose",
		},
		[]string{"provider", "purpose"},
	)
)

// Collector records run metrics. Components accept this interface rather
// than the registry so tests can substitute Noop.
type Collector interface {
	// EvaluationCompleted records one finished evaluation.
	EvaluationCompleted(success bool, duration time.Duration)

	// ToolCallCompleted records one tool invocation.
	ToolCallCompleted(success bool)

	// LLMRequestCompleted records one model request.
	LLMRequestCompleted(provider, purpose string)
}

// Prom is the Collector backed by the process-wide Prometheus registry.
type Prom struct{}

func (Prom) EvaluationCompleted(success bool, duration time.Duration) {
	evaluationsTotal.WithLabelValues(statusLabel(success)).Inc()
	evaluationDuration.Observe(duration.Seconds())
}

func (Prom) ToolCallCompleted(success bool) {
	toolCallsTotal.WithLabelValues(statusLabel(success)).Inc()
}

func (Prom) LLMRequestCompleted(provider, purpose string) {
	llmRequestsTotal.WithLabelValues(provider, purpose).Inc()
}

// Noop discards every recording.
type Noop struct{}

func (Noop) EvaluationCompleted(bool, time.Duration) {}
func (Noop) ToolCallCompleted(bool)                  {}
func (Noop) LLMRequestCompleted(string, string)      {}

var (
	_ Collector = Prom{}
	_ Collector = Noop{}
)

// OrNoop returns c, or Noop when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return Noop{}
	}
	return c
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Serve exposes /metrics on addr until ctx is canceled, then shuts the
// listener down with a short drain window. The error return reports listener
// startup failures only.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}
