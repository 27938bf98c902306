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

package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EbramTawfik/mcp-evals/internal/log"
	"github.com/EbramTawfik/mcp-evals/internal/metrics"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
)

const (
	// gradeTemperature keeps judgments stable across runs.
	gradeTemperature = 0.1

	// gradeMaxTokens bounds the judge response; five integers plus a short
	// comment fit comfortably.
	gradeMaxTokens = 800
)

const judgeSystemPrompt = `You grade how well a tool-using response answers a request. Score each dimension as an integer from 1 (poor) to 5 (excellent) and respond with strict JSON:
{"accuracy": n, "completeness": n, "relevance": n, "clarity": n, "reasoning": n, "comments": "..."}
Respond with JSON only, no surrounding text.`

// Grader scores evaluation responses with a judge model.
type Grader struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
	calls       *log.CallMiddleware
	metrics     metrics.Collector
}

// Config holds the configuration for creating a Grader.
type Config struct {
	// Provider issues the judge completions.
	Provider llm.Provider

	// Model is the model identifier passed to the provider.
	Model string

	// Temperature overrides the judging default when set.
	Temperature *float64

	// MaxTokens overrides the judging default when set.
	MaxTokens *int

	// Logger receives grading events. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics counts judge completions. Optional.
	Metrics metrics.Collector
}

// NewGrader creates a grader with the given configuration.
func NewGrader(cfg Config) (*Grader, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	temperature := gradeTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens := gradeMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	return &Grader{
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
		calls:       log.NewCallMiddleware(logger),
		metrics:     metrics.OrNoop(cfg.Metrics),
	}, nil
}

// Grade scores a response against its prompt and optional expected result.
// Grading never fails: when the judge call or its output is unusable, the
// neutral mid-range score comes back with a comment naming the problem so a
// result record is always produced.
func (g *Grader) Grade(ctx context.Context, prompt, response, expected string) Score {
	var resp *llm.CompletionResponse
	call := &log.LLMCall{Provider: g.provider.Name(), Model: g.model, Purpose: "score"}
	err := g.calls.LLM(call, func() error {
		var completeErr error
		resp, completeErr = g.provider.Complete(ctx, g.request(prompt, response, expected))
		return completeErr
	})
	g.metrics.LLMRequestCompleted(g.provider.Name(), "score")
	if err != nil {
		return NeutralScore(fmt.Sprintf("scoring call failed: %v", err))
	}

	score, err := parseScore(resp.Content)
	if err != nil {
		g.logger.Debug("judge output unusable, using neutral score",
			"error", err.Error())
		return NeutralScore(fmt.Sprintf("scoring output unusable: %v", err))
	}
	return score
}

func (g *Grader) request(prompt, response, expected string) llm.CompletionRequest {
	temperature := g.temperature
	maxTokens := g.maxTokens

	return llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.MessageRoleSystem, Content: judgeSystemPrompt},
			{Role: llm.MessageRoleUser, Content: buildJudgePrompt(prompt, response, expected)},
		},
		Model:       g.model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		JSONObject:  true,
	}
}

func buildJudgePrompt(prompt, response, expected string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Request:\n%s\n\nResponse:\n%s\n", prompt, response)
	if expected != "" {
		fmt.Fprintf(&b, "\nExpected result:\n%s\n", expected)
	}

	return b.String()
}

// parseScore extracts and validates the judge's JSON. Out-of-range
// sub-scores are rejected here so the caller falls back to the neutral
// score rather than recording a fabricated judgment.
func parseScore(content string) (Score, error) {
	text := llm.ExtractJSON(content)
	if text == "" {
		return Score{}, fmt.Errorf("no JSON in judge output")
	}

	var raw struct {
		Accuracy     int    `json:"accuracy"`
		Completeness int    `json:"completeness"`
		Relevance    int    `json:"relevance"`
		Clarity      int    `json:"clarity"`
		Reasoning    int    `json:"reasoning"`
		Comments     string `json:"comments"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Score{}, fmt.Errorf("parsing judge output: %w", err)
	}

	score, err := NewScore(raw.Accuracy, raw.Completeness, raw.Relevance, raw.Clarity, raw.Reasoning)
	if err != nil {
		return Score{}, err
	}
	score.Comments = raw.Comments
	return score, nil
}
