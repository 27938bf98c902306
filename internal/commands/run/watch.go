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

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/watch"
)

// watchLoop evaluates the suites, then re-evaluates whenever one of the
// files changes. Evaluation failures are reported and the loop keeps
// waiting; only cancellation (Ctrl-C) or a watcher fault ends it, and
// cancellation exits cleanly.
func watchLoop(ctx context.Context, cmd *cobra.Command, files []string, opts options, logger *slog.Logger, tracer trace.Tracer) error {
	watcher, err := watch.New(watch.Config{
		Paths:  files,
		Logger: logger,
	})
	if err != nil {
		return shared.NewEvalFailedError("starting suite watcher", err)
	}
	defer watcher.Close()

	iterate := func() {
		if err := evaluateAll(ctx, cmd, files, opts, logger, tracer); err != nil {
			var exitErr *shared.ExitError
			if errors.As(err, &exitErr) && exitErr.Code == shared.ExitEvalFailed && exitErr.Cause == nil {
				// Failure counts are already on the rendered table.
				return
			}
			fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderError(err.Error()))
		}
	}

	iterate()
	fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("\nWatching for changes. Press Ctrl-C to stop."))

	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-watcher.Changes():
			clearScreen(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderWarn(fmt.Sprintf("%s changed, re-running", path)))
			iterate()
			fmt.Fprintln(cmd.OutOrStdout(), shared.Muted.Render("\nWatching for changes. Press Ctrl-C to stop."))
		}
	}
}
