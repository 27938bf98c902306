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

// Package runner evaluates a suite's cases concurrently and aggregates the
// outcome. Each case runs the full connect-execute-score flow behind a
// counting semaphore; a failing case records a failure result and never
// aborts its siblings.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/EbramTawfik/mcp-evals/internal/assert"
	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/log"
	"github.com/EbramTawfik/mcp-evals/internal/metrics"
	"github.com/EbramTawfik/mcp-evals/internal/planner"
	"github.com/EbramTawfik/mcp-evals/internal/scoring"
	"github.com/EbramTawfik/mcp-evals/internal/server"
)

// ClientSource hands out live clients keyed by server configuration and
// owns their teardown. *server.Cache satisfies it.
type ClientSource interface {
	GetOrCreateClient(ctx context.Context, cfg config.ServerConfig) (server.ToolClient, error)
	CloseAll()
}

// Interactor runs the plan-then-execute loop for one prompt.
// *planner.Planner satisfies it.
type Interactor interface {
	ExecuteInteraction(ctx context.Context, client server.ToolClient, eval, prompt string) (string, *planner.Plan, error)
}

// Scorer grades a finished response. *scoring.Grader satisfies it.
type Scorer interface {
	Grade(ctx context.Context, prompt, response, expected string) scoring.Score
}

// Runner orchestrates suite runs.
type Runner struct {
	clients     ClientSource
	interactor  Interactor
	scorer      Scorer
	expect      *assert.Evaluator
	parallelism int
	logger      *slog.Logger
	metrics     metrics.Collector
	tracer      trace.Tracer
}

// Config holds the configuration for creating a Runner.
type Config struct {
	// Clients provides per-server-config clients. Required. The runner
	// owns teardown: Run closes all cached clients on every exit path.
	Clients ClientSource

	// Interactor executes prompts against live servers. Required.
	Interactor Interactor

	// Scorer grades responses. Required.
	Scorer Scorer

	// Parallelism bounds concurrent evaluations. Defaults to the
	// available CPU count.
	Parallelism int

	// Logger receives run and evaluation events. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics counts evaluations. Optional.
	Metrics metrics.Collector

	// Tracer emits run/evaluation spans. Optional; defaults to a no-op.
	Tracer trace.Tracer
}

// New creates a runner with the given configuration.
func New(cfg Config) (*Runner, error) {
	if cfg.Clients == nil {
		return nil, fmt.Errorf("client source is required")
	}
	if cfg.Interactor == nil {
		return nil, fmt.Errorf("interactor is required")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("runner")
	}

	return &Runner{
		clients:     cfg.Clients,
		interactor:  cfg.Interactor,
		scorer:      cfg.Scorer,
		expect:      assert.New(),
		parallelism: parallelism,
		logger:      logger,
		metrics:     metrics.OrNoop(cfg.Metrics),
		tracer:      tracer,
	}, nil
}

// Run evaluates every case in the suite and returns the aggregate summary.
// Results land in suite order regardless of completion order, and each
// carries its case name. Cached clients and their processes are torn down
// before Run returns, on every exit path. The returned error reports
// cancellation only; per-case failures live in the summary.
func (r *Runner) Run(ctx context.Context, suite *config.Suite) (*Summary, error) {
	defer r.clients.CloseAll()

	runID := uuid.New().String()
	logger := log.WithRunContext(r.logger, runID, suite.Path)

	ctx, span := r.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("suite", suite.Path),
		attribute.Int("evals", len(suite.Evals)),
	))
	defer span.End()

	summary := &Summary{
		RunID:     runID,
		Suite:     suite.Path,
		StartedAt: time.Now(),
		Results:   make([]Result, len(suite.Evals)),
	}

	logger.Info("run starting",
		"evals", len(suite.Evals),
		"parallelism", r.parallelism)

	sem := make(chan struct{}, r.parallelism)
	var wg sync.WaitGroup

dispatch:
	for i := range suite.Evals {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// Cases never dispatched still get a result entry so the
			// summary stays complete.
			for j := i; j < len(suite.Evals); j++ {
				summary.Results[j] = cancelledResult(suite.Evals[j], ctx.Err())
			}
			break dispatch
		}

		wg.Add(1)
		go func(slot int, eval config.EvalCase) {
			defer wg.Done()
			defer func() { <-sem }()
			summary.Results[slot] = r.evaluate(ctx, runID, suite, eval)
		}(i, suite.Evals[i])
	}

	wg.Wait()
	summary.CompletedAt = time.Now()
	summary.aggregate()

	logger.Info("run complete",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"mean_score", summary.MeanScore,
		"duration_ms", summary.CompletedAt.Sub(summary.StartedAt).Milliseconds())

	return summary, ctx.Err()
}

// evaluate runs the full flow for one case. It always returns a result:
// connect or execute failures short-circuit to a failure record with the
// sentinel score, and a panic anywhere in the flow is converted the same
// way rather than taking down the batch.
func (r *Runner) evaluate(ctx context.Context, runID string, suite *config.Suite, eval config.EvalCase) (res Result) {
	started := time.Now()
	logger := log.WithEvalContext(r.logger, runID, eval.Name)

	ctx, span := r.tracer.Start(ctx, "evaluation", trace.WithAttributes(
		attribute.String("eval", eval.Name),
	))
	defer span.End()

	res = Result{Name: eval.Name, Description: eval.Description, Prompt: eval.Prompt}
	defer func() {
		if rec := recover(); rec != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", rec)
			res.Score = scoring.FailureScore(res.Error)
		}
		res.DurationMs = time.Since(started).Milliseconds()
		r.metrics.EvaluationCompleted(res.Success, time.Since(started))
		logger.Info("evaluation complete",
			"success", res.Success,
			"score", res.Score.Average(),
			"duration_ms", res.DurationMs)
	}()

	client, err := r.connect(ctx, suite.Server)
	if err != nil {
		res.Error = err.Error()
		res.Score = scoring.FailureScore(res.Error)
		return res
	}

	execCtx, execSpan := r.tracer.Start(ctx, "execute")
	response, plan, err := r.interactor.ExecuteInteraction(execCtx, client, eval.Name, eval.Prompt)
	execSpan.End()
	if err != nil {
		res.Error = err.Error()
		res.Score = scoring.FailureScore(res.Error)
		return res
	}
	res.Response = response
	if plan != nil {
		res.PlanSource = string(plan.Source)
	}

	scoreCtx, scoreSpan := r.tracer.Start(ctx, "score")
	res.Score = r.scorer.Grade(scoreCtx, eval.Prompt, response, eval.ExpectedResult)
	scoreSpan.End()
	res.Success = true

	// Expect expressions see the scored result; a failed or erroring
	// expression turns an otherwise-successful result into a failure.
	if eval.Expect != "" {
		check := r.expect.Evaluate(eval.Expect, expectContext(res, time.Since(started)))
		if check.Err != nil {
			res.Success = false
			res.Error = fmt.Sprintf("expect %q: %v", eval.Expect, check.Err)
		} else if !check.Passed {
			res.Success = false
			res.Error = fmt.Sprintf("expect %q not satisfied", eval.Expect)
		}
	}

	return res
}

// connect resolves the shared client and probes connectivity. A server that
// lists at least one tool counts as connected.
func (r *Runner) connect(ctx context.Context, cfg config.ServerConfig) (server.ToolClient, error) {
	ctx, span := r.tracer.Start(ctx, "connect")
	defer span.End()

	client, err := r.clients.GetOrCreateClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("connectivity probe failed: %w", err)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("connectivity probe failed: server advertises no tools")
	}

	return client, nil
}

// expectContext builds the variable environment an expect expression runs
// against.
func expectContext(res Result, elapsed time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"name":        res.Name,
		"response":    res.Response,
		"success":     res.Success,
		"error":       res.Error,
		"duration_ms": elapsed.Milliseconds(),
		"plan_source": res.PlanSource,
		"score": map[string]interface{}{
			"accuracy":     res.Score.Accuracy,
			"completeness": res.Score.Completeness,
			"relevance":    res.Score.Relevance,
			"clarity":      res.Score.Clarity,
			"reasoning":    res.Score.Reasoning,
			"average":      res.Score.Average(),
			"comments":     res.Score.Comments,
		},
	}
}

func cancelledResult(eval config.EvalCase, cause error) Result {
	msg := fmt.Sprintf("run cancelled: %v", cause)
	return Result{
		Name:        eval.Name,
		Description: eval.Description,
		Prompt:      eval.Prompt,
		Error:       msg,
		Score:       scoring.FailureScore(msg),
	}
}
