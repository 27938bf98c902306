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

// Package planner turns a free-text prompt into tool invocations against a
// live server. Planning is model-first: a single JSON-constrained completion
// proposes the calls, and deterministic pattern matching takes over when the
// model path fails or proposes nothing.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/EbramTawfik/mcp-evals/internal/log"
	"github.com/EbramTawfik/mcp-evals/internal/metrics"
	"github.com/EbramTawfik/mcp-evals/internal/server"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
)

const (
	// planTemperature keeps planning output stable across runs.
	planTemperature = 0.1

	// planMaxTokens bounds the planning response; a tool selection never
	// needs more than a few hundred tokens.
	planMaxTokens = 500
)

// PlanSource identifies which planning path produced a plan.
type PlanSource string

const (
	// SourceModel means the completion call produced the executions.
	SourceModel PlanSource = "model"

	// SourceFallback means pattern matching produced the executions.
	SourceFallback PlanSource = "fallback"
)

// ToolExecution is a single planned tool call.
type ToolExecution struct {
	// ToolName must match a name advertised by the live server.
	ToolName string `json:"toolName"`

	// Arguments holds the call arguments keyed by parameter name.
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Plan is the ordered list of tool calls for one prompt.
type Plan struct {
	// Executions are invoked in order.
	Executions []ToolExecution

	// Source records which planning path produced the executions.
	Source PlanSource
}

// Planner plans and executes tool interactions for evaluation prompts.
type Planner struct {
	provider    llm.Provider
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
	calls       *log.CallMiddleware
	metrics     metrics.Collector
}

// Config holds the configuration for creating a Planner.
type Config struct {
	// Provider issues the planning completions.
	Provider llm.Provider

	// Model is the model identifier passed to the provider.
	Model string

	// Temperature overrides the planning default when set.
	Temperature *float64

	// MaxTokens overrides the planning default when set.
	MaxTokens *int

	// Logger receives planning and tool-call events. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// Metrics counts completions and tool calls. Optional.
	Metrics metrics.Collector
}

// NewPlanner creates a planner with the given configuration.
func NewPlanner(cfg Config) (*Planner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	temperature := planTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens := planMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	return &Planner{
		provider:    cfg.Provider,
		model:       cfg.Model,
		temperature: temperature,
		maxTokens:   maxTokens,
		logger:      logger,
		calls:       log.NewCallMiddleware(logger),
		metrics:     metrics.OrNoop(cfg.Metrics),
	}, nil
}

// PlanToolExecutions produces the ordered tool calls for a prompt. The model
// path runs first; when its output is unusable or empty, the deterministic
// fallback takes over. Planning never fails outright: the worst case is an
// empty fallback plan.
func (p *Planner) PlanToolExecutions(ctx context.Context, prompt string, tools []server.ToolDefinition) *Plan {
	if execs := p.planWithModel(ctx, prompt, tools); len(execs) > 0 {
		return &Plan{Executions: execs, Source: SourceModel}
	}
	return &Plan{Executions: FallbackPlan(prompt, tools), Source: SourceFallback}
}

func (p *Planner) planWithModel(ctx context.Context, prompt string, tools []server.ToolDefinition) []ToolExecution {
	temperature := p.temperature
	maxTokens := p.maxTokens

	req := llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.MessageRoleSystem, Content: buildPlanningPrompt(tools)},
			{Role: llm.MessageRoleUser, Content: prompt},
		},
		Model:       p.model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		JSONObject:  true,
	}

	var resp *llm.CompletionResponse
	call := &log.LLMCall{Provider: p.provider.Name(), Model: p.model, Purpose: "plan"}
	err := p.calls.LLM(call, func() error {
		var completeErr error
		resp, completeErr = p.provider.Complete(ctx, req)
		return completeErr
	})
	p.metrics.LLMRequestCompleted(p.provider.Name(), "plan")
	if err != nil {
		p.logger.Debug("planning request failed, falling back to pattern matching",
			"error", err.Error())
		return nil
	}

	return parseExecutions(resp.Content)
}

// buildPlanningPrompt embeds the advertised tools and the response contract
// the parser understands.
func buildPlanningPrompt(tools []server.ToolDefinition) string {
	var b strings.Builder

	b.WriteString("You plan tool calls that satisfy a user request.\n\nAvailable tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Respond with strict JSON: {\"toolName\": \"...\", \"arguments\": {...}} for one call, {\"tools\": [...]} for several, or {} if no tool applies.\n")
	b.WriteString("- For numeric operations, name the arguments \"a\" and \"b\" and take their values from the numbers in the request.\n")
	b.WriteString("- For message-style tools, pass a \"message\" argument taken from quoted text in the request, or the whole request when nothing is quoted.\n")
	b.WriteString("- Respond with JSON only, no surrounding text.\n")

	return b.String()
}

// parseExecutions normalizes the three response shapes models produce: a bare
// array, a {"tools": [...]} wrapper, and a single {toolName, arguments}
// object. Unusable content yields nil rather than an error; the caller falls
// back to pattern matching.
func parseExecutions(content string) []ToolExecution {
	text := llm.ExtractJSON(content)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "[") {
		var list []ToolExecution
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil
		}
		return keepNamed(list)
	}

	var wrapper struct {
		Tools []ToolExecution `json:"tools"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil
	}
	if len(wrapper.Tools) > 0 {
		return keepNamed(wrapper.Tools)
	}

	var single ToolExecution
	if err := json.Unmarshal([]byte(text), &single); err != nil {
		return nil
	}
	if single.ToolName == "" {
		return nil
	}
	return []ToolExecution{single}
}

// keepNamed drops entries that lack a tool name.
func keepNamed(list []ToolExecution) []ToolExecution {
	var named []ToolExecution
	for _, exec := range list {
		if exec.ToolName == "" {
			continue
		}
		named = append(named, exec)
	}
	return named
}
