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

// Package evals runs MCP tool-server evaluation suites as a library.
//
// Example:
//
//	suite, err := evals.LoadSuite("weather.yaml")
//	if err != nil {
//		return err
//	}
//	summary, err := evals.Run(ctx, suite, evals.WithParallelism(4))
//	if err != nil {
//		return err
//	}
//	if !summary.Succeeded() {
//		// inspect summary.Results
//	}
//
// Provider credentials come from the environment (OPENAI_API_KEY,
// AZURE_OPENAI_API_KEY, ANTHROPIC_API_KEY) unless WithProvider supplies a
// custom implementation.
package evals

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/metrics"
	"github.com/EbramTawfik/mcp-evals/internal/planner"
	"github.com/EbramTawfik/mcp-evals/internal/runner"
	"github.com/EbramTawfik/mcp-evals/internal/scoring"
	"github.com/EbramTawfik/mcp-evals/internal/server"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
)

// Re-exported types so embedding callers need only this package.
type (
	// Suite is a parsed evaluation suite.
	Suite = config.Suite

	// ModelConfig tunes the LLM used for planning and scoring.
	ModelConfig = config.ModelConfig

	// ServerConfig describes how to reach or launch the server under test.
	ServerConfig = config.ServerConfig

	// EvalCase is one prompt to evaluate.
	EvalCase = config.EvalCase

	// Result is the outcome of one evaluation.
	Result = runner.Result

	// Summary is the aggregate outcome of one suite run.
	Summary = runner.Summary

	// Score is a judge's five-dimension grade.
	Score = scoring.Score

	// Collector counts evaluations, tool calls, and LLM requests.
	Collector = metrics.Collector
)

// LoadSuite reads, parses, and validates a suite file.
func LoadSuite(path string) (*Suite, error) {
	return config.Load(path)
}

// ParseSuite parses and validates suite YAML held in memory.
func ParseSuite(data []byte) (*Suite, error) {
	return config.Parse(data)
}

// Option adjusts how Run drives a suite.
type Option func(*options)

type options struct {
	parallelism int
	logger      *slog.Logger
	metrics     metrics.Collector
	tracer      trace.Tracer
	provider    llm.Provider
}

// WithParallelism bounds concurrent evaluations. Values <= 0 keep the
// default (available CPU count).
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithLogger routes run and evaluation events to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector records run metrics through the given collector.
func WithCollector(c metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithTracer emits run/evaluation spans through the given tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithProvider bypasses the environment-driven provider factory. Tests
// and callers with custom gateways use this.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// Run evaluates every case in the suite and returns the aggregate
// summary. Per-case failures are recorded in the summary, never returned
// as an error; the error reports setup problems and cancellation only.
func Run(ctx context.Context, suite *Suite, opts ...Option) (*Summary, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := o.provider
	if provider == nil {
		var err error
		provider, err = BuildProvider(suite.Model)
		if err != nil {
			return nil, err
		}
	}

	cache := server.NewCache(server.CacheConfig{
		Timeout: suite.Server.TimeoutDuration(),
		Logger:  logger,
	})

	interactor, err := planner.NewPlanner(planner.Config{
		Provider:    provider,
		Model:       suite.Model.Name,
		Temperature: suite.Model.Temperature,
		MaxTokens:   suite.Model.MaxTokens,
		Logger:      logger,
		Metrics:     o.metrics,
	})
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.NewGrader(scoring.Config{
		Provider:    provider,
		Model:       suite.Model.Name,
		Temperature: suite.Model.Temperature,
		MaxTokens:   suite.Model.MaxTokens,
		Logger:      logger,
		Metrics:     o.metrics,
	})
	if err != nil {
		return nil, err
	}

	batch, err := runner.New(runner.Config{
		Clients:     cache,
		Interactor:  interactor,
		Scorer:      scorer,
		Parallelism: o.parallelism,
		Logger:      logger,
		Metrics:     o.metrics,
		Tracer:      o.tracer,
	})
	if err != nil {
		return nil, err
	}

	return batch.Run(ctx, suite)
}
