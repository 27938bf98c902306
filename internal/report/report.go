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

// Package report renders saved run summaries as Markdown or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/EbramTawfik/mcp-evals/internal/runner"
)

// Load reads a summary document previously written by the run command.
func Load(path string) (*runner.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var summary runner.Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	if len(summary.Results) == 0 {
		return nil, fmt.Errorf("no results in %s", path)
	}

	return &summary, nil
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(summary *runner.Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

// WriteMarkdown writes the summary as a Markdown document: a header with
// the aggregate counts, a per-case table, and a section per case with the
// response and judge comments.
func WriteMarkdown(summary *runner.Summary, w io.Writer) error {
	fmt.Fprintf(w, "# Evaluation report: %s\n\n", summary.Suite)
	fmt.Fprintf(w, "Run `%s` — started %s, finished %s.\n\n",
		summary.RunID,
		summary.StartedAt.Format("2006-01-02 15:04:05"),
		summary.CompletedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "**%d passed**, **%d failed**, mean score %.2f/5 across passing cases.\n\n",
		summary.Passed, summary.Failed, summary.MeanScore)

	fmt.Fprintln(w, "| Eval | Status | Score | Duration | Plan |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, res := range summary.Results {
		status := "pass"
		if !res.Success {
			status = "fail"
		}
		fmt.Fprintf(w, "| %s | %s | %.1f | %dms | %s |\n",
			escapeCell(res.Name), status, res.Score.Average(), res.DurationMs, res.PlanSource)
	}
	fmt.Fprintln(w)

	for _, res := range summary.Results {
		fmt.Fprintf(w, "## %s\n\n", res.Name)
		if res.Description != "" {
			fmt.Fprintf(w, "%s\n\n", res.Description)
		}
		fmt.Fprintf(w, "**Prompt:** %s\n\n", res.Prompt)

		if res.Error != "" {
			fmt.Fprintf(w, "**Error:** %s\n\n", res.Error)
		}
		if res.Response != "" {
			fmt.Fprintf(w, "**Response:**\n\n```\n%s\n```\n\n", res.Response)
		}

		fmt.Fprintf(w, "| Accuracy | Completeness | Relevance | Clarity | Reasoning |\n")
		fmt.Fprintf(w, "|---|---|---|---|---|\n")
		fmt.Fprintf(w, "| %d | %d | %d | %d | %d |\n\n",
			res.Score.Accuracy, res.Score.Completeness, res.Score.Relevance,
			res.Score.Clarity, res.Score.Reasoning)

		if res.Score.Comments != "" {
			fmt.Fprintf(w, "> %s\n\n", res.Score.Comments)
		}
	}

	return nil
}

// escapeCell keeps pipe characters from breaking the Markdown table.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
