package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "direct object",
			input: `{"status": "ok"}`,
			want:  `{"status": "ok"}`,
		},
		{
			name:  "direct array",
			input: `[1, 2, 3]`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "surrounding whitespace",
			input: "\n  {\"a\": 1}  \n",
			want:  `{"a": 1}`,
		},
		{
			name:  "json fence",
			input: "```json\n{\"status\": \"ok\"}\n```",
			want:  `{"status": "ok"}`,
		},
		{
			name:  "plain fence",
			input: "```\n[1, 2, 3]\n```",
			want:  `[1, 2, 3]`,
		},
		{
			name:  "non-json fence skipped",
			input: "```\nnot json\n```\n```json\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose around object",
			input: `The plan is {"toolName": "echo"} as requested.`,
			want:  `{"toolName": "echo"}`,
		},
		{
			name:  "prose around array",
			input: `Results: [1, 2, 3] done`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "nested brackets",
			input: `best: {"outer": {"inner": [1, 2]}} trailing`,
			want:  `{"outer": {"inner": [1, 2]}}`,
		},
		{
			name:  "braces inside strings",
			input: `note {"text": "a } inside"} end`,
			want:  `{"text": "a } inside"}`,
		},
		{
			name:  "escaped quotes inside strings",
			input: `x {"say": "\"hi\" there"} y`,
			want:  `{"say": "\"hi\" there"}`,
		},
		{
			name:  "plain text",
			input: "This is just plain text with no JSON",
			want:  "",
		},
		{
			name:  "direct text passed through unvalidated",
			input: `{"broken": true`,
			want:  `{"broken": true`,
		},
		{
			name:  "unbalanced brackets in prose",
			input: `partial output: {"broken": true`,
			want:  "",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
