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

package log

import (
	"log/slog"
	"time"
)

// ToolCall represents a tool invocation for logging purposes.
type ToolCall struct {
	// Tool is the name of the tool being invoked.
	Tool string

	// Eval is the name of the evaluation driving the invocation.
	Eval string

	// Arguments contains the arguments passed to the tool.
	Arguments map[string]interface{}
}

// LLMCall represents a model request for logging purposes.
type LLMCall struct {
	// Provider is the LLM provider name (e.g., "openai", "anthropic").
	Provider string

	// Model is the model identifier.
	Model string

	// Purpose describes what the request is for (e.g., "plan", "score").
	Purpose string
}

// CallOutcome represents the result of an instrumented call.
type CallOutcome struct {
	// Success indicates whether the call succeeded.
	Success bool

	// Error is the error message if the call failed.
	Error string

	// DurationMs is the duration of the call in milliseconds.
	DurationMs int64
}

// LogToolCall logs a tool invocation that is about to run.
func LogToolCall(logger *slog.Logger, call *ToolCall) {
	attrs := []any{
		EventKey, "tool_call",
		"tool", call.Tool,
	}

	if call.Eval != "" {
		attrs = append(attrs, EvalKey, call.Eval)
	}

	logger.Debug("tool call started", attrs...)
}

// LogToolOutcome logs a completed tool invocation.
// Failures log at warn level; a failed tool call is reported inline in the
// interaction record rather than aborting the evaluation.
func LogToolOutcome(logger *slog.Logger, call *ToolCall, outcome *CallOutcome) {
	attrs := []any{
		EventKey, "tool_result",
		"tool", call.Tool,
		"success", outcome.Success,
		DurationKey, outcome.DurationMs,
	}

	if call.Eval != "" {
		attrs = append(attrs, EvalKey, call.Eval)
	}

	if outcome.Error != "" {
		attrs = append(attrs, "error", outcome.Error)
	}

	level := slog.LevelInfo
	message := "tool call completed"

	if !outcome.Success {
		level = slog.LevelWarn
		message = "tool call failed"
	}

	logger.Log(nil, level, message, attrs...)
}

// LogLLMOutcome logs a completed model request.
func LogLLMOutcome(logger *slog.Logger, call *LLMCall, outcome *CallOutcome) {
	attrs := []any{
		EventKey, "llm_request",
		ProviderKey, call.Provider,
		"model", call.Model,
		"purpose", call.Purpose,
		"success", outcome.Success,
		DurationKey, outcome.DurationMs,
	}

	if outcome.Error != "" {
		attrs = append(attrs, "error", outcome.Error)
	}

	level := slog.LevelInfo
	message := "llm request completed"

	if !outcome.Success {
		level = slog.LevelError
		message = "llm request failed"
	}

	logger.Log(nil, level, message, attrs...)
}

// CallMiddleware wraps tool and model calls with timing and logging.
type CallMiddleware struct {
	logger *slog.Logger
}

// NewCallMiddleware creates a new call logging middleware.
func NewCallMiddleware(logger *slog.Logger) *CallMiddleware {
	return &CallMiddleware{
		logger: logger,
	}
}

// Tool wraps a tool invocation, logging the call and its outcome.
func (m *CallMiddleware) Tool(call *ToolCall, handler func() error) error {
	start := time.Now()

	LogToolCall(m.logger, call)

	err := handler()

	outcome := &CallOutcome{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		outcome.Error = err.Error()
	}

	LogToolOutcome(m.logger, call, outcome)

	return err
}

// LLM wraps a model request, logging the call and its outcome.
func (m *CallMiddleware) LLM(call *LLMCall, handler func() error) error {
	start := time.Now()

	err := handler()

	outcome := &CallOutcome{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		outcome.Error = err.Error()
	}

	LogLLMOutcome(m.logger, call, outcome)

	return err
}
