package providers

import (
	"context"
	stderrors "errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/EbramTawfik/mcp-evals/pkg/errors"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs, including Azure OpenAI deployments.
type OpenAIProvider struct {
	client       *openai.Client
	providerName string
}

// NewOpenAIProvider creates a provider for the OpenAI API.
// baseURL overrides the API endpoint when non-empty, which also covers
// OpenAI-compatible gateways.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "model.api_key",
			Reason:     "API key is required for the openai provider",
			Suggestion: "Set the OPENAI_API_KEY environment variable",
		}
	}

	httpClient, err := newProviderHTTPClient("mcp-evals-openai/1.0")
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = httpClient

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		providerName: "openai",
	}, nil
}

// NewAzureOpenAIProvider creates a provider for an Azure OpenAI resource.
// The endpoint is the resource URL, e.g. https://myresource.openai.azure.com.
func NewAzureOpenAIProvider(apiKey, endpoint string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "model.api_key",
			Reason:     "API key is required for the azure provider",
			Suggestion: "Set the AZURE_OPENAI_API_KEY environment variable",
		}
	}
	if endpoint == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "model.base_url",
			Reason:     "Azure OpenAI requires a resource endpoint",
			Suggestion: "Set model.base_url to https://<resource>.openai.azure.com",
		}
	}

	httpClient, err := newProviderHTTPClient("mcp-evals-azure/1.0")
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultAzureConfig(apiKey, endpoint)
	cfg.HTTPClient = httpClient

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(cfg),
		providerName: "azure",
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.providerName
}

// Capabilities returns the features supported by this provider.
func (p *OpenAIProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		JSONMode: true,
	}
}

// Complete sends a synchronous completion request to the chat completions API.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &errors.InvalidConfigurationError{
			Field:  "messages",
			Reason: "completion request must have at least one message",
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.JSONObject {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, p.wrapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &errors.ProviderError{
			Provider:  p.providerName,
			Message:   "response contained no choices",
			RequestID: resp.ID,
		}
	}

	choice := resp.Choices[0]

	return &llm.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: openAIFinishReason(choice.FinishReason),
		Usage: llm.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		RequestID: resp.ID,
		Created:   time.Unix(resp.Created, 0),
	}, nil
}

// wrapError converts SDK errors into provider errors with guidance.
func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return &errors.ProviderError{
			Provider:   p.providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Suggestion: suggestionForStatus(apiErr.HTTPStatusCode),
			Cause:      err,
		}
	}

	return &errors.ProviderError{
		Provider: p.providerName,
		Message:  err.Error(),
		Cause:    err,
	}
}

// openAIRole maps message roles to the wire format.
func openAIRole(role llm.MessageRole) string {
	switch role {
	case llm.MessageRoleSystem:
		return openai.ChatMessageRoleSystem
	case llm.MessageRoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// openAIFinishReason maps wire finish reasons to provider-agnostic ones.
func openAIFinishReason(reason openai.FinishReason) llm.FinishReason {
	switch reason {
	case openai.FinishReasonLength:
		return llm.FinishReasonLength
	case openai.FinishReasonContentFilter:
		return llm.FinishReasonContentFilter
	default:
		return llm.FinishReasonStop
	}
}
