package providers

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/EbramTawfik/mcp-evals/pkg/errors"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
)

// anthropicDefaultMaxTokens caps responses when the request leaves
// MaxTokens unset. The Messages API requires an explicit value.
const anthropicDefaultMaxTokens = 4096

// AnthropicProvider implements the Provider interface for Anthropic's
// Claude models via the Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider instance.
func NewAnthropicProvider(apiKey string) (*AnthropicProvider, error) {
	return newAnthropicProvider(apiKey)
}

// newAnthropicProvider accepts extra request options so tests can point the
// client at a local server.
func newAnthropicProvider(apiKey string, extra ...anthropicopt.RequestOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "model.api_key",
			Reason:     "API key is required for the anthropic provider",
			Suggestion: "Set the ANTHROPIC_API_KEY environment variable",
		}
	}

	httpClient, err := newProviderHTTPClient("mcp-evals-anthropic/1.0")
	if err != nil {
		return nil, err
	}

	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(apiKey),
		anthropicopt.WithHTTPClient(httpClient),
	}
	opts = append(opts, extra...)

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{client: &client}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Capabilities returns the features supported by this provider.
// The Messages API has no JSON response format parameter, so JSON output
// relies on prompt instructions.
func (p *AnthropicProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		JSONMode: false,
	}
}

// Complete sends a synchronous completion request to the Messages API.
func (p *AnthropicProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.InvalidConfigurationError{
			Field:  "messages",
			Reason: "completion request must have at least one message",
		}
	}

	maxTokens := anthropicDefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	// Anthropic carries the system prompt in a separate field.
	var system string
	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.MessageRoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case llm.MessageRoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}

	return &llm.CompletionResponse{
		Content:      b.String(),
		FinishReason: anthropicFinishReason(msg.StopReason),
		Usage: llm.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		Model:     string(msg.Model),
		RequestID: msg.ID,
		Created:   time.Now(),
	}, nil
}

// wrapError converts SDK errors into provider errors with guidance.
func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if stderrors.As(err, &apiErr) {
		return &errors.ProviderError{
			Provider:   "anthropic",
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
			Suggestion: suggestionForStatus(apiErr.StatusCode),
			Cause:      err,
		}
	}

	return &errors.ProviderError{
		Provider: "anthropic",
		Message:  err.Error(),
		Cause:    err,
	}
}

// anthropicFinishReason maps stop reasons to provider-agnostic ones.
func anthropicFinishReason(reason anthropic.StopReason) llm.FinishReason {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return llm.FinishReasonLength
	case anthropic.StopReasonRefusal:
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonStop
	}
}
