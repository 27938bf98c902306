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

package errors

import (
	"fmt"
	"time"
)

// InvalidConfigurationError represents a malformed or contradictory server,
// transport, or suite configuration. It is fatal to the request being set up
// and is never retried.
type InvalidConfigurationError struct {
	// Field identifies the configuration field at fault (e.g. "server.url")
	Field string

	// Reason explains what is wrong with the value
	Reason string

	// Suggestion provides actionable guidance for fixing the configuration
	Suggestion string
}

// Error implements the error interface.
func (e *InvalidConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration at %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ServerStartError represents a server process that exited during its launch
// grace window, or an HTTP-launched server that never became ready within its
// readiness budget.
type ServerStartError struct {
	// Command is the launch command that was attempted
	Command string

	// ExitCode is the child's exit code, or -1 when the child never exited
	// (readiness exhaustion)
	ExitCode int

	// Stderr holds the tail of the child's captured stderr, if any
	Stderr string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ServerStartError) Error() string {
	msg := fmt.Sprintf("server failed to start: %s", e.Command)
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	if e.Cause != nil && e.Stderr == "" {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ServerStartError) Unwrap() error {
	return e.Cause
}

// ConnectionError represents a failure to construct a live protocol client
// or to probe an already-started server. The orchestrator surfaces it as a
// "not connected" failure result rather than a crash.
type ConnectionError struct {
	// Target describes the endpoint or command that could not be reached
	Target string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to connect to %s: %v", e.Target, e.Cause)
	}
	return fmt.Sprintf("failed to connect to %s", e.Target)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ProviderError represents LLM provider failures.
// Use this for errors originating from external LLM providers.
type ProviderError struct {
	// Provider is the name of the LLM provider (e.g., "anthropic", "openai")
	Provider string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Message is the human-readable error message
	Message string

	// Suggestion provides actionable guidance for resolution
	Suggestion string

	// RequestID correlates this error with provider logs
	RequestID string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s error", e.Provider)

	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}

	msg = fmt.Sprintf("%s: %s", msg, e.Message)

	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request-id: %s)", msg, e.RequestID)
	}

	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
// Use this when an operation exceeds its configured timeout.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "readiness poll", "tool call")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
