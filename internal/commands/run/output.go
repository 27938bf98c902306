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
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/report"
	"github.com/EbramTawfik/mcp-evals/internal/runner"
)

// maxErrorWidth bounds the inline error column so one bad response does
// not wrap the whole table.
const maxErrorWidth = 60

// renderSummary prints the styled per-evaluation table for one suite.
func renderSummary(w io.Writer, summary *runner.Summary) {
	fmt.Fprintf(w, "\n%s %s %s\n\n",
		shared.Header.Render("Suite:"),
		summary.Suite,
		shared.Muted.Render("(run "+shortID(summary.RunID)+")"))

	nameWidth := 0
	for _, res := range summary.Results {
		if len(res.Name) > nameWidth {
			nameWidth = len(res.Name)
		}
	}

	for _, res := range summary.Results {
		line := fmt.Sprintf("  %s  %-*s  %s  %s",
			shared.RenderPassFail(res.Success),
			nameWidth, res.Name,
			scoreCell(res),
			shared.Muted.Render(fmt.Sprintf("%6dms", res.DurationMs)))
		if res.Error != "" {
			line += "  " + shared.StatusError.Render(truncate(res.Error, maxErrorWidth))
		}
		fmt.Fprintln(w, line)
	}

	total := summary.Passed + summary.Failed
	parts := []string{
		shared.StatusOK.Render(fmt.Sprintf("%d passed", summary.Passed)),
	}
	if summary.Failed > 0 {
		parts = append(parts, shared.StatusError.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	parts = append(parts,
		fmt.Sprintf("mean score %.2f/5", summary.MeanScore),
		shared.Muted.Render(summary.CompletedAt.Sub(summary.StartedAt).Round(10*time.Millisecond).String()))

	fmt.Fprintf(w, "\n%s evaluations: %s\n", shared.Bold.Render(fmt.Sprintf("%d", total)), strings.Join(parts, ", "))
}

// scoreCell renders the judge score, or a dash for evaluations that never
// reached scoring.
func scoreCell(res runner.Result) string {
	if !res.Success && res.Response == "" {
		return shared.Muted.Render("  -/5")
	}
	return fmt.Sprintf("%.1f/5", res.Score.Average())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// emitSummaries writes the machine-readable document: a single summary
// object for one suite, an array when a glob matched several.
func emitSummaries(w io.Writer, summaries []*runner.Summary) error {
	if len(summaries) == 1 {
		return report.WriteJSON(summaries[0], w)
	}
	return shared.EmitJSON(w, summaries)
}

// writeSummaries writes the same document to a file for later reporting.
func writeSummaries(path string, summaries []*runner.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := emitSummaries(f, summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// clearScreen resets the terminal between watch iterations.
func clearScreen(w io.Writer) {
	if shared.IsTTY() {
		fmt.Fprint(w, "\033[H\033[2J")
	}
}
