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

package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/report"
)

// NewCommand creates the report command
func NewCommand() *cobra.Command {
	var (
		format string
		jqExpr string
	)

	cmd := &cobra.Command{
		Use:   "report <results.json>",
		Short: "Render stored results as Markdown or JSON",
		Long: `Report reads a results file produced by 'run --out' (or 'run --json')
and renders it for humans or downstream tooling.

The default Markdown rendering includes the run header, a summary table,
and a section per evaluation with the prompt, response, and judge
scores. With --jq the document is filtered through a jq expression
instead, which is the quickest way to pull one field out of a large
run.`,
		Example: `  # Markdown report
  mcp-evals report results.json

  # Raw JSON, pretty-printed
  mcp-evals report results.json --format json

  # Names of failing evaluations
  mcp-evals report results.json --jq '.results[] | select(.success | not) | .name'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], format, jqExpr)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "md", "Output format: md or json")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "Filter the results document with a jq expression")

	return cmd
}

func runReport(cmd *cobra.Command, path, format, jqExpr string) error {
	summary, err := report.Load(path)
	if err != nil {
		return shared.NewInvalidConfigError(fmt.Sprintf("results file %s", path), err)
	}

	out := cmd.OutOrStdout()

	if jqExpr != "" {
		value, err := report.ApplyJQ(cmd.Context(), jqExpr, summary)
		if err != nil {
			return shared.NewEvalFailedError("applying jq expression", err)
		}
		return report.WriteJQ(value, out)
	}

	switch format {
	case "md", "markdown":
		return report.WriteMarkdown(summary, out)
	case "json":
		return report.WriteJSON(summary, out)
	default:
		return shared.NewInvalidConfigError(
			fmt.Sprintf("unknown format %q", format),
			fmt.Errorf("supported formats: md, json"))
	}
}
