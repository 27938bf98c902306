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
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/commands/shared"
	"github.com/EbramTawfik/mcp-evals/internal/runner"
	"github.com/EbramTawfik/mcp-evals/internal/scoring"
)

func writeResults(t *testing.T) string {
	t.Helper()
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	summary := &runner.Summary{
		RunID:       "report-test-run",
		Suite:       "weather.yaml",
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
		Results: []runner.Result{
			{
				Name:     "forecast",
				Prompt:   "What is the weather in Paris?",
				Response: "Sunny, 24C",
				Success:  true,
				Score: scoring.Score{
					Accuracy: 5, Completeness: 4, Relevance: 5, Clarity: 4, Reasoning: 4,
				},
				DurationMs: 1800,
			},
			{
				Name:       "bad-city",
				Prompt:     "Weather in Nowhereville?",
				Success:    false,
				Error:      "tool call failed",
				DurationMs: 600,
			},
		},
		Passed:    1,
		Failed:    1,
		MeanScore: 4.4,
	}

	data, err := json.Marshal(summary)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "results.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReport_Markdown(t *testing.T) {
	path := writeResults(t)

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("report: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"# Evaluation report: weather.yaml", "forecast", "bad-city", "| Eval | Status |"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestReport_JSON(t *testing.T) {
	path := writeResults(t)

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path, "--format", "json"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("report --format json: %v", err)
	}

	var summary runner.Summary
	if err := json.Unmarshal(buf.Bytes(), &summary); err != nil {
		t.Fatalf("output is not a summary document: %v", err)
	}
	if summary.Suite != "weather.yaml" || len(summary.Results) != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestReport_JQ(t *testing.T) {
	path := writeResults(t)

	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{path, "--jq", ".results[] | select(.success | not) | .name"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("report --jq: %v", err)
	}
	if !strings.Contains(buf.String(), `"bad-city"`) {
		t.Errorf("jq output = %q, want failing eval name", buf.String())
	}
}

func TestReport_UnknownFormat(t *testing.T) {
	path := writeResults(t)

	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--format", "xml"})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitInvalidConfig {
		t.Fatalf("err = %v, want invalid-config exit", err)
	}
}

func TestReport_MissingFile(t *testing.T) {
	cmd := NewCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.json")})

	err := cmd.Execute()
	var exitErr *shared.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != shared.ExitInvalidConfig {
		t.Fatalf("err = %v, want invalid-config exit", err)
	}
}
