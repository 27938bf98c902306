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

package validate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EbramTawfik/mcp-evals/internal/assert"
	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/internal/server"
	pkgerrors "github.com/EbramTawfik/mcp-evals/pkg/errors"
)

// suiteReport is the per-file outcome for JSON output.
type suiteReport struct {
	Suite     string   `json:"suite"`
	Valid     bool     `json:"valid"`
	Evals     int      `json:"evals,omitempty"`
	Transport string   `json:"transport,omitempty"`
	Tools     []string `json:"tools,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "validate <suite.yaml|glob ...>",
		Short: "Check suite files without running them",
		Long: `Validate checks that each suite file has valid YAML syntax, names a
supported provider, and describes a reachable server shape. Validation
alone never talks to the server or the LLM provider.

With --connect the harness additionally dials each suite's server and
lists its tools, which catches launch failures and empty tool sets
before a full run spends judge-model tokens.`,
		Example: `  # Check one suite
  mcp-evals validate weather.yaml

  # Check every suite in a tree
  mcp-evals validate 'evals/**/*.yaml'

  # Also dial the servers and list their tools
  mcp-evals validate weather.yaml --connect`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, connect)
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "Dial each server and list its tools")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string, connect bool) error {
	files, err := config.Discover(args)
	if err != nil {
		if shared.GetJSON() {
			shared.EmitJSONError(cmd.OutOrStdout(), "validate", []shared.JSONError{{
				Code:    shared.ErrorCodeFileNotFound,
				Message: err.Error(),
			}})
			return &shared.ExitError{Code: shared.ExitInvalidConfig, Message: ""}
		}
		return shared.NewInvalidConfigError("resolving suite files", err)
	}

	logger := shared.NewLogger()
	expect := assert.New()
	reports := make([]suiteReport, 0, len(files))
	var invalid, unreachable int

	for _, file := range files {
		rep := checkSuite(cmd.Context(), file, connect, expect, logger)
		reports = append(reports, rep)
		if !rep.Valid {
			invalid++
		} else if connect && len(rep.Errors) > 0 {
			unreachable++
		}
	}

	if shared.GetJSON() {
		type response struct {
			shared.JSONResponse
			Suites []suiteReport `json:"suites"`
		}
		resp := response{
			JSONResponse: shared.NewJSONResponse("validate", invalid == 0 && unreachable == 0),
			Suites:       reports,
		}
		if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		renderReports(cmd, reports, connect)
	}

	switch {
	case invalid > 0:
		return &shared.ExitError{
			Code:    shared.ExitInvalidConfig,
			Message: fmt.Sprintf("%d of %d suites invalid", invalid, len(files)),
		}
	case unreachable > 0:
		return &shared.ExitError{
			Code:    shared.ExitEvalFailed,
			Message: fmt.Sprintf("%d of %d servers unreachable", unreachable, len(files)),
		}
	}
	return nil
}

// checkSuite validates one file and, when asked, probes its server.
func checkSuite(ctx context.Context, file string, connect bool, expect *assert.Evaluator, logger *slog.Logger) suiteReport {
	rep := suiteReport{Suite: file}

	suite, err := config.Load(file)
	if err != nil {
		rep.Errors = append(rep.Errors, err.Error())
		if suggestion := pkgerrors.SuggestionFor(err); suggestion != "" {
			rep.Errors = append(rep.Errors, "suggestion: "+suggestion)
		}
		return rep
	}

	rep.Valid = true
	for _, eval := range suite.Evals {
		if err := expect.Validate(eval.Expect); err != nil {
			rep.Valid = false
			rep.Errors = append(rep.Errors, fmt.Sprintf("eval %q: expect expression: %v", eval.Name, err))
		}
	}
	rep.Evals = len(suite.Evals)
	rep.Transport = string(server.ResolveTransportKind(suite.Server))

	if connect && rep.Valid {
		tools, err := probeServer(ctx, suite, logger)
		if err != nil {
			rep.Errors = append(rep.Errors, err.Error())
			return rep
		}
		rep.Tools = tools
	}
	return rep
}

// probeServer dials the suite's server and returns its advertised tools.
func probeServer(ctx context.Context, suite *config.Suite, logger *slog.Logger) ([]string, error) {
	cache := server.NewCache(server.CacheConfig{
		Timeout: suite.Server.TimeoutDuration(),
		Logger:  logger,
	})
	defer cache.CloseAll()

	client, err := cache.GetOrCreateClient(ctx, suite.Server)
	if err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("server advertises no tools")
	}

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names, nil
}

func renderReports(cmd *cobra.Command, reports []suiteReport, connect bool) {
	out := cmd.OutOrStdout()

	for _, rep := range reports {
		status := rep.Valid && len(rep.Errors) == 0
		fmt.Fprintf(out, "%s %s\n", shared.RenderStatus(status, statusLabel(status)), rep.Suite)

		if rep.Valid {
			detail := fmt.Sprintf("  %d evals, %s transport", rep.Evals, rep.Transport)
			if connect && len(rep.Tools) > 0 {
				detail += fmt.Sprintf(", tools: %s", strings.Join(rep.Tools, ", "))
			}
			fmt.Fprintln(out, shared.Muted.Render(detail))
		}
		for _, msg := range rep.Errors {
			fmt.Fprintf(out, "  %s\n", shared.RenderError(msg))
		}
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}
