// Package llm provides abstractions for Large Language Model providers.
// This package is designed to be embeddable in other Go applications and
// provides a provider-agnostic interface for the completion requests the
// harness makes when planning tool calls and scoring results.
package llm

import (
	"context"
	"time"
)

// Provider defines the interface that all LLM providers must implement.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g., "anthropic", "openai").
	Name() string

	// Capabilities returns the provider's supported features.
	Capabilities() Capabilities

	// Complete sends a synchronous completion request and returns the full response.
	// This method blocks until the LLM response is complete.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Capabilities describes what a provider supports.
type Capabilities struct {
	// JSONMode indicates whether the provider can be forced to emit a JSON
	// object via a response format parameter. Providers without native JSON
	// mode rely on prompt instructions alone.
	JSONMode bool
}

// CompletionRequest contains all parameters for an LLM completion request.
type CompletionRequest struct {
	// Messages is the conversation history including the current prompt.
	Messages []Message

	// Model specifies which model to use.
	Model string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	// Valid range: 0.0-1.0. Default: provider-specific.
	Temperature *float64

	// MaxTokens limits the response length. If nil, uses provider default.
	MaxTokens *int

	// JSONObject requests a JSON object response format when the provider
	// supports it. Ignored by providers without JSON mode.
	JSONObject bool
}

// Message represents a single message in a conversation.
type Message struct {
	// Role indicates who sent this message (system, user, assistant).
	Role MessageRole

	// Content is the text content of the message.
	Content string
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// MessageRoleSystem indicates a system message (context, instructions).
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser indicates a message from the user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant indicates a message from the LLM.
	MessageRoleAssistant MessageRole = "assistant"
)

// CompletionResponse contains the full response from a completion.
type CompletionResponse struct {
	// Content is the generated text response.
	Content string

	// FinishReason explains why generation stopped.
	FinishReason FinishReason

	// Usage contains token consumption information.
	Usage TokenUsage

	// Model is the actual model ID that handled this request.
	Model string

	// RequestID is the unique identifier for this request (for tracing).
	RequestID string

	// Created is the timestamp when this response was generated.
	Created time.Time
}

// FinishReason indicates why completion generation stopped.
type FinishReason string

const (
	// FinishReasonStop indicates natural completion.
	FinishReasonStop FinishReason = "stop"

	// FinishReasonLength indicates max_tokens limit reached.
	FinishReasonLength FinishReason = "length"

	// FinishReasonContentFilter indicates content policy violation.
	FinishReasonContentFilter FinishReason = "content_filter"

	// FinishReasonError indicates an error occurred.
	FinishReasonError FinishReason = "error"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	// InputTokens is the number of tokens in the input (prompt).
	InputTokens int

	// OutputTokens is the number of tokens in the output (completion).
	OutputTokens int

	// TotalTokens is the sum of input and output tokens.
	TotalTokens int
}
