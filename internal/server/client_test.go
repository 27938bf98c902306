package server

import (
	"context"
	"strings"
	"testing"
)

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   ClientConfig
		errorMsg string
	}{
		{
			name:     "missing handle",
			config:   ClientConfig{},
			errorMsg: "transport handle is required",
		},
		{
			name:     "unsupported handle kind",
			config:   ClientConfig{Handle: &TransportHandle{Kind: TransportKind("grpc")}},
			errorMsg: "unsupported transport handle kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), tt.config)
			if err == nil {
				t.Fatalf("NewClient() expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("NewClient() error = %v, want error containing %q", err, tt.errorMsg)
			}
		})
	}
}

func TestToolCallResponse_Text(t *testing.T) {
	tests := []struct {
		name     string
		response ToolCallResponse
		want     string
	}{
		{
			name:     "empty response",
			response: ToolCallResponse{},
			want:     "",
		},
		{
			name: "single text block",
			response: ToolCallResponse{Content: []ContentItem{
				{Type: "text", Text: "22 degrees"},
			}},
			want: "22 degrees",
		},
		{
			name: "multiple text blocks joined",
			response: ToolCallResponse{Content: []ContentItem{
				{Type: "text", Text: "line one"},
				{Type: "text", Text: "line two"},
			}},
			want: "line one\nline two",
		},
		{
			name: "empty text blocks dropped",
			response: ToolCallResponse{Content: []ContentItem{
				{Type: "text", Text: ""},
				{Type: "text", Text: "kept"},
			}},
			want: "kept",
		},
		{
			name: "non-text block serialized",
			response: ToolCallResponse{Content: []ContentItem{
				{Type: "image", Data: "aGk=", MimeType: "image/png"},
			}},
			want: `{"type":"image","data":"aGk=","mimeType":"image/png"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.response.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractProcess_NilClient(t *testing.T) {
	if got := extractProcess(nil); got != nil {
		t.Errorf("extractProcess(nil) = %v, want nil", got)
	}
}
