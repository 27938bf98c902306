package llm

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/EbramTawfik/mcp-evals/pkg/errors"
)

// mockProvider returns scripted responses for testing wrappers.
type mockProvider struct {
	name      string
	caps      Capabilities
	responses []mockResponse
	calls     int
}

type mockResponse struct {
	resp *CompletionResponse
	err  error
}

func (m *mockProvider) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockProvider) Capabilities() Capabilities {
	return m.caps
}

func (m *mockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	return r.resp, r.err
}

func fastRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		Jitter:       0,
	}
}

func TestRetryableProvider_SucceedsFirstTry(t *testing.T) {
	mock := &mockProvider{
		responses: []mockResponse{
			{resp: &CompletionResponse{Content: "hello"}},
		},
	}

	wrapper := NewRetryableProvider(mock, fastRetryConfig(3))

	resp, err := wrapper.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected content 'hello', got %q", resp.Content)
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetryableProvider_RetriesServerErrors(t *testing.T) {
	serverErr := &errors.ProviderError{Provider: "mock", StatusCode: 503, Message: "overloaded"}
	mock := &mockProvider{
		responses: []mockResponse{
			{err: serverErr},
			{err: serverErr},
			{resp: &CompletionResponse{Content: "recovered"}},
		},
	}

	wrapper := NewRetryableProvider(mock, fastRetryConfig(3))

	resp, err := wrapper.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "recovered" {
		t.Errorf("expected content 'recovered', got %q", resp.Content)
	}
	if mock.calls != 3 {
		t.Errorf("expected 3 calls, got %d", mock.calls)
	}
}

func TestRetryableProvider_RetriesRateLimits(t *testing.T) {
	rateLimitErr := &errors.ProviderError{Provider: "mock", StatusCode: 429, Message: "rate limited"}
	mock := &mockProvider{
		responses: []mockResponse{
			{err: rateLimitErr},
			{resp: &CompletionResponse{Content: "ok"}},
		},
	}

	wrapper := NewRetryableProvider(mock, fastRetryConfig(3))

	resp, err := wrapper.Complete(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected content 'ok', got %q", resp.Content)
	}
	if mock.calls != 2 {
		t.Errorf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetryableProvider_DoesNotRetryClientErrors(t *testing.T) {
	authErr := &errors.ProviderError{Provider: "mock", StatusCode: 401, Message: "invalid api key"}
	mock := &mockProvider{
		responses: []mockResponse{
			{err: authErr},
			{resp: &CompletionResponse{Content: "should never reach"}},
		},
	}

	wrapper := NewRetryableProvider(mock, fastRetryConfig(3))

	_, err := wrapper.Complete(context.Background(), CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsProvider(err) {
		t.Errorf("expected provider error, got: %v", err)
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 call (no retries), got %d", mock.calls)
	}
}

func TestRetryableProvider_ExhaustsRetries(t *testing.T) {
	serverErr := &errors.ProviderError{Provider: "mock", StatusCode: 500, Message: "broken"}
	mock := &mockProvider{
		responses: []mockResponse{
			{err: serverErr},
		},
	}

	wrapper := NewRetryableProvider(mock, fastRetryConfig(2))

	_, err := wrapper.Complete(context.Background(), CompletionRequest{})
	if !stderrors.Is(err, ErrMaxRetriesExceeded) {
		t.Fatalf("expected ErrMaxRetriesExceeded, got: %v", err)
	}
	// Initial attempt plus 2 retries.
	if mock.calls != 3 {
		t.Errorf("expected 3 calls, got %d", mock.calls)
	}
}

func TestRetryableProvider_ContextCancellation(t *testing.T) {
	serverErr := &errors.ProviderError{Provider: "mock", StatusCode: 500, Message: "broken"}
	mock := &mockProvider{
		responses: []mockResponse{
			{err: serverErr},
		},
	}

	cfg := fastRetryConfig(5)
	cfg.InitialDelay = 100 * time.Millisecond
	wrapper := NewRetryableProvider(mock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := wrapper.Complete(ctx, CompletionRequest{})
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestRetryableProvider_DelegatesNameAndCapabilities(t *testing.T) {
	mock := &mockProvider{
		name: "fancy",
		caps: Capabilities{JSONMode: true},
		responses: []mockResponse{
			{resp: &CompletionResponse{}},
		},
	}

	wrapper := NewRetryableProvider(mock, DefaultRetryConfig())

	if wrapper.Name() != "fancy" {
		t.Errorf("expected name 'fancy', got %q", wrapper.Name())
	}
	if !wrapper.Capabilities().JSONMode {
		t.Error("expected JSONMode capability to pass through")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{
			name:      "nil error",
			err:       nil,
			retryable: false,
		},
		{
			name:      "context canceled",
			err:       context.Canceled,
			retryable: false,
		},
		{
			name:      "context deadline exceeded",
			err:       context.DeadlineExceeded,
			retryable: false,
		},
		{
			name:      "provider 500",
			err:       &errors.ProviderError{Provider: "x", StatusCode: 500, Message: "boom"},
			retryable: true,
		},
		{
			name:      "provider 429",
			err:       &errors.ProviderError{Provider: "x", StatusCode: 429, Message: "slow down"},
			retryable: true,
		},
		{
			name:      "provider 400",
			err:       &errors.ProviderError{Provider: "x", StatusCode: 400, Message: "bad request"},
			retryable: false,
		},
		{
			name:      "plain error",
			err:       stderrors.New("mystery"),
			retryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isRetryableError(tt.err)
			if got != tt.retryable {
				t.Errorf("isRetryableError(%v) = %v, expected %v", tt.err, got, tt.retryable)
			}
		})
	}
}
