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
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}

	if cfg.Format != FormatJSON {
		t.Errorf("expected default format 'json', got %q", cfg.Format)
	}

	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}

	if cfg.AddSource {
		t.Errorf("expected default AddSource to be false")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected *Config
	}{
		{
			name:    "defaults when no env vars",
			envVars: map[string]string{},
			expected: &Config{
				Level:     "info",
				Format:    FormatJSON,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_LEVEL=debug",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			expected: &Config{
				Level:     "debug",
				Format:    FormatJSON,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_LEVEL=TRACE (case insensitive)",
			envVars: map[string]string{
				"LOG_LEVEL": "TRACE",
			},
			expected: &Config{
				Level:     "trace",
				Format:    FormatJSON,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_FORMAT=text",
			envVars: map[string]string{
				"LOG_FORMAT": "text",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatText,
				Output:    os.Stderr,
				AddSource: false,
			},
		},
		{
			name: "LOG_SOURCE=1",
			envVars: map[string]string{
				"LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "info",
				Format:    FormatJSON,
				Output:    os.Stderr,
				AddSource: true,
			},
		},
		{
			name: "all env vars",
			envVars: map[string]string{
				"LOG_LEVEL":  "error",
				"LOG_FORMAT": "text",
				"LOG_SOURCE": "1",
			},
			expected: &Config{
				Level:     "error",
				Format:    FormatText,
				Output:    os.Stderr,
				AddSource: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer func() {
				// Clean up
				for k := range tt.envVars {
					os.Unsetenv(k)
				}
			}()

			cfg := FromEnv()

			if cfg.Level != tt.expected.Level {
				t.Errorf("expected level %q, got %q", tt.expected.Level, cfg.Level)
			}
			if cfg.Format != tt.expected.Format {
				t.Errorf("expected format %q, got %q", tt.expected.Format, cfg.Format)
			}
			if cfg.AddSource != tt.expected.AddSource {
				t.Errorf("expected AddSource %v, got %v", tt.expected.AddSource, cfg.AddSource)
			}
		})
	}
}

func TestFromEnv_HarnessLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected string
	}{
		{
			name: "MCP_EVALS_LOG_LEVEL wins over LOG_LEVEL",
			envVars: map[string]string{
				"MCP_EVALS_LOG_LEVEL": "trace",
				"LOG_LEVEL":           "warn",
			},
			expected: "trace",
		},
		{
			name: "MCP_EVALS_DEBUG forces debug",
			envVars: map[string]string{
				"MCP_EVALS_DEBUG":     "1",
				"MCP_EVALS_LOG_LEVEL": "error",
			},
			expected: "debug",
		},
		{
			name: "MCP_EVALS_DEBUG=true forces debug",
			envVars: map[string]string{
				"MCP_EVALS_DEBUG": "true",
				"LOG_LEVEL":       "error",
			},
			expected: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.envVars {
					os.Unsetenv(k)
				}
			}()

			cfg := FromEnv()

			if cfg.Level != tt.expected {
				t.Errorf("expected level %q, got %q", tt.expected, cfg.Level)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:     "debug",
		Format:    FormatJSON,
		Output:    &buf,
		AddSource: false,
	}

	logger := New(cfg)
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}

	// Verify it's valid JSON
	var logEntry map[string]interface{}
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Errorf("expected valid JSON output, got error: %v", err)
	}

	// Check for expected fields
	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg field to be 'test message', got: %v", logEntry["msg"])
	}
	if logEntry["key"] != "value" {
		t.Errorf("expected key field to be 'value', got: %v", logEntry["key"])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatText,
		Output: &buf,
	}

	logger := New(cfg)
	logger.Info("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected output to contain 'key=value', got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLogLevel_Filtering(t *testing.T) {
	tests := []struct {
		name          string
		configLevel   string
		logFunc       func(*slog.Logger)
		shouldContain bool
	}{
		{
			name:        "debug log at debug level",
			configLevel: "debug",
			logFunc: func(l *slog.Logger) {
				l.Debug("debug message")
			},
			shouldContain: true,
		},
		{
			name:        "debug log at info level",
			configLevel: "info",
			logFunc: func(l *slog.Logger) {
				l.Debug("debug message")
			},
			shouldContain: false,
		},
		{
			name:        "trace log at debug level",
			configLevel: "debug",
			logFunc: func(l *slog.Logger) {
				Trace(l, "trace message")
			},
			shouldContain: false,
		},
		{
			name:        "trace log at trace level",
			configLevel: "trace",
			logFunc: func(l *slog.Logger) {
				Trace(l, "trace message")
			},
			shouldContain: true,
		},
		{
			name:        "info log at warn level",
			configLevel: "warn",
			logFunc: func(l *slog.Logger) {
				l.Info("info message")
			},
			shouldContain: false,
		},
		{
			name:        "error log at error level",
			configLevel: "error",
			logFunc: func(l *slog.Logger) {
				l.Error("error message")
			},
			shouldContain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			cfg := &Config{
				Level:  tt.configLevel,
				Format: FormatJSON,
				Output: &buf,
			}

			logger := New(cfg)
			tt.logFunc(logger)

			output := buf.String()
			contains := len(output) > 0

			if contains != tt.shouldContain {
				t.Errorf("expected log output=%v, got output=%v (output: %s)", tt.shouldContain, contains, output)
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	loggerWithComponent := WithComponent(logger, "cache")
	loggerWithComponent.Info("test message")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}

	if logEntry["component"] != "cache" {
		t.Errorf("expected component field to be 'cache', got: %v", logEntry["component"])
	}
}

func TestWithRunContext(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	loggerWithRun := WithRunContext(logger, "run-123", "evals/weather.yaml")
	loggerWithRun.Info("test message")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}

	if logEntry[RunIDKey] != "run-123" {
		t.Errorf("expected run_id field to be 'run-123', got: %v", logEntry[RunIDKey])
	}
	if logEntry[SuiteKey] != "evals/weather.yaml" {
		t.Errorf("expected suite field to be 'evals/weather.yaml', got: %v", logEntry[SuiteKey])
	}
}

func TestWithEvalContext(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	loggerWithEval := WithEvalContext(logger, "run-123", "echo roundtrip")
	loggerWithEval.Info("test message")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}

	if logEntry[RunIDKey] != "run-123" {
		t.Errorf("expected run_id field to be 'run-123', got: %v", logEntry[RunIDKey])
	}
	if logEntry[EvalKey] != "echo roundtrip" {
		t.Errorf("expected eval field to be 'echo roundtrip', got: %v", logEntry[EvalKey])
	}
}

func TestWithProvider(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	loggerWithProvider := WithProvider(logger, "anthropic")
	loggerWithProvider.Info("test message")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}

	if logEntry[ProviderKey] != "anthropic" {
		t.Errorf("expected provider field to be 'anthropic', got: %v", logEntry[ProviderKey])
	}
}

func TestAttrHelpers(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	logger.LogAttrs(nil, slog.LevelInfo, "test",
		String("str", "value"),
		Int("num", 42),
		Int64("big", 9000000000),
		Bool("flag", true),
		Duration("elapsed", 150),
	)

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}

	if logEntry["str"] != "value" {
		t.Errorf("expected str field, got: %v", logEntry["str"])
	}
	if logEntry["num"] != float64(42) {
		t.Errorf("expected num field, got: %v", logEntry["num"])
	}
	if logEntry["big"] != float64(9000000000) {
		t.Errorf("expected big field, got: %v", logEntry["big"])
	}
	if logEntry["flag"] != true {
		t.Errorf("expected flag field, got: %v", logEntry["flag"])
	}
	if logEntry["elapsed_ms"] != float64(150) {
		t.Errorf("expected elapsed_ms field, got: %v", logEntry["elapsed_ms"])
	}
}

func TestErrorAttr(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: &buf,
	}

	logger := New(cfg)
	logger.LogAttrs(nil, slog.LevelError, "operation failed", Error(errors.New("boom")))

	output := buf.String()
	if !strings.Contains(output, "boom") {
		t.Errorf("expected output to contain error message, got: %s", output)
	}
}

func TestNilConfig(t *testing.T) {
	// Should not panic and should use defaults
	logger := New(nil)
	if logger == nil {
		t.Fatal("expected non-nil logger from nil config")
	}
}

func TestSanitizeAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "normal key",
			key:      "sk-abc123def456",
			expected: "...f456",
		},
		{
			name:     "short key",
			key:      "abc",
			expected: "[REDACTED]",
		},
		{
			name:     "exactly 4 chars",
			key:      "abcd",
			expected: "[REDACTED]",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeAPIKey(tt.key)
			if got != tt.expected {
				t.Errorf("SanitizeAPIKey(%q) = %q, expected %q", tt.key, got, tt.expected)
			}
		})
	}
}
