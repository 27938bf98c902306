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

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/history"
	"github.com/EbramTawfik/mcp-evals/internal/metrics"
	"github.com/EbramTawfik/mcp-evals/internal/runner"
	"github.com/EbramTawfik/mcp-evals/internal/tracing"
	"github.com/EbramTawfik/mcp-evals/pkg/evals"
)

// options collects the run command's flag values.
type options struct {
	parallel    int
	outPath     string
	watch       bool
	metricsAddr string
	trace       bool
	noHistory   bool
	historyDB   string
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run <suite.yaml|glob ...>",
		Short: "Evaluate suites against their MCP servers",
		Long: `Run loads each suite file, connects to (or launches) the server it
describes, drives every prompt through the server's tools, and scores
the responses with the judge model.

The exit code is 0 only when every evaluation in every suite passed;
1 when any evaluation failed; 2 when a suite file is invalid.`,
		Example: `  # Evaluate one suite
  mcp-evals run weather.yaml

  # Evaluate every suite under evals/, four at a time
  mcp-evals run 'evals/**/*.yaml' --parallel 4

  # Re-run on file change, keeping results out of the history database
  mcp-evals run weather.yaml --watch --no-history

  # Machine-readable summary
  mcp-evals run weather.yaml --json > results.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Concurrent evaluations per suite (default: CPU count)")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Write the summary JSON to a file")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Re-run suites when their files change")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address for the run's duration")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Emit OpenTelemetry spans to stderr")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Skip recording runs in the history database")
	cmd.Flags().StringVar(&opts.historyDB, "history-db", "", "History database path (default: ~/.mcp-evals/history.db)")

	return cmd
}

func runSuites(cmd *cobra.Command, args []string, opts options) error {
	files, err := config.Discover(args)
	if err != nil {
		return shared.NewInvalidConfigError("resolving suite files", err)
	}

	logger := shared.NewLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr); err != nil {
				logger.Error("metrics listener failed", "error", err, "addr", opts.metricsAddr)
			}
		}()
	}

	tracer, shutdown, err := setupTracing(opts.trace)
	if err != nil {
		return shared.NewEvalFailedError("initializing tracing", err)
	}
	defer shutdown()

	if opts.watch {
		return watchLoop(ctx, cmd, files, opts, logger, tracer)
	}
	return evaluateAll(ctx, cmd, files, opts, logger, tracer)
}

// evaluateAll runs every suite once and reports the aggregate outcome.
func evaluateAll(ctx context.Context, cmd *cobra.Command, files []string, opts options, logger *slog.Logger, tracer trace.Tracer) error {
	summaries := make([]*runner.Summary, 0, len(files))

	for _, file := range files {
		suite, err := config.Load(file)
		if err != nil {
			return shared.NewInvalidConfigError(fmt.Sprintf("suite %s", file), err)
		}

		summary, err := evals.Run(ctx, suite,
			evals.WithParallelism(opts.parallel),
			evals.WithLogger(logger),
			evals.WithCollector(metrics.Prom{}),
			evals.WithTracer(tracer),
		)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return shared.NewEvalFailedError("run cancelled", nil)
			}
			return &shared.ExitError{
				Code:    shared.ExitCodeFor(err),
				Message: fmt.Sprintf("suite %s", file),
				Cause:   err,
			}
		}

		summaries = append(summaries, summary)

		if !shared.GetJSON() {
			renderSummary(cmd.OutOrStdout(), summary)
		}
	}

	if !opts.noHistory {
		saveHistory(ctx, logger, opts.historyDB, summaries)
	}

	if shared.GetJSON() {
		if err := emitSummaries(cmd.OutOrStdout(), summaries); err != nil {
			return shared.NewEvalFailedError("encoding summary", err)
		}
	}
	if opts.outPath != "" {
		if err := writeSummaries(opts.outPath, summaries); err != nil {
			return shared.NewEvalFailedError("writing results file", err)
		}
	}

	var passed, failed int
	for _, summary := range summaries {
		passed += summary.Passed
		failed += summary.Failed
	}
	if failed > 0 {
		return &shared.ExitError{
			Code:    shared.ExitEvalFailed,
			Message: fmt.Sprintf("%d of %d evaluations failed", failed, passed+failed),
		}
	}
	return nil
}

// saveHistory records the summaries, warning rather than failing when the
// database is unavailable. Results already reached the user by this point.
func saveHistory(ctx context.Context, logger *slog.Logger, path string, summaries []*runner.Summary) {
	if len(summaries) == 0 {
		return
	}

	var err error
	if path == "" {
		path, err = config.HistoryDBPath()
		if err != nil {
			logger.Warn("history disabled", "error", err)
			return
		}
	}

	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history disabled", "error", err, "path", path)
		return
	}
	defer store.Close()

	for _, summary := range summaries {
		if err := store.SaveRun(ctx, summary); err != nil {
			logger.Warn("saving run history", "error", err, "run_id", summary.RunID)
		}
	}
}

// setupTracing returns the tracer for the run and a flush function. When
// disabled both are cheap no-ops.
func setupTracing(enabled bool) (trace.Tracer, func(), error) {
	version, _, _ := shared.GetVersion()

	provider, err := tracing.Setup(tracing.Config{
		Enabled:        enabled,
		ServiceName:    "mcp-evals",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, nil, err
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}
	return provider.Tracer("runner"), shutdown, nil
}
