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

// Package config loads and validates evaluation suite files.
//
// A suite is a YAML document binding a judge model, one server under test,
// and a list of evaluation cases:
//
//	model:
//	  provider: openai
//	  name: gpt-4o
//	server:
//	  path: ./weather_server.py
//	evals:
//	  - name: current weather
//	    prompt: What's the weather in Cairo?
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EbramTawfik/mcp-evals/pkg/errors"
)

// Provider names accepted in model.provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

// Default tuning values applied when the model block leaves them unset.
const (
	// DefaultTimeoutSeconds bounds each server interaction.
	DefaultTimeoutSeconds = 30
)

// Suite is a fully parsed evaluation suite file.
type Suite struct {
	// Model selects and tunes the judge/planner LLM.
	Model ModelConfig `yaml:"model"`

	// Server describes the tool server under evaluation.
	Server ServerConfig `yaml:"server"`

	// Evals lists the evaluation cases to run against the server.
	Evals []EvalCase `yaml:"evals"`

	// Path is the file the suite was loaded from. Not part of the YAML.
	Path string `yaml:"-"`
}

// ModelConfig tunes the LLM used for planning and scoring.
type ModelConfig struct {
	// Provider is the LLM provider (openai, azure, anthropic).
	Provider string `yaml:"provider"`

	// Name is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-5").
	Name string `yaml:"name"`

	// Temperature overrides the provider default when set.
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens overrides the provider default when set.
	MaxTokens *int `yaml:"max_tokens,omitempty"`

	// BaseURL overrides the provider endpoint. Required for azure
	// (the resource endpoint), optional for openai-compatible gateways.
	BaseURL string `yaml:"base_url,omitempty"`

	// RequestsPerSecond throttles outbound LLM requests when positive.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// ServerConfig describes how to reach or launch the server under test.
type ServerConfig struct {
	// Transport explicitly selects the transport kind (stdio, http).
	// When empty the kind is inferred: url implies http, path implies stdio.
	Transport string `yaml:"transport,omitempty"`

	// Path is the server artifact to launch (script or executable).
	Path string `yaml:"path,omitempty"`

	// URL is the endpoint of an HTTP server. When Path is also set the
	// harness launches the artifact and polls this endpoint for readiness.
	URL string `yaml:"url,omitempty"`

	// Args are extra command-line arguments for the launched process.
	Args []string `yaml:"args,omitempty"`

	// Env are environment variables in KEY=VALUE format.
	// Supports ${VAR} syntax for runtime variable substitution.
	Env []string `yaml:"env,omitempty"`

	// Timeout bounds each server interaction, in seconds.
	// Defaults to 30 seconds if not specified.
	Timeout int `yaml:"timeout,omitempty"`
}

// TimeoutDuration returns the configured timeout as a duration.
func (s *ServerConfig) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// EvalCase is a single evaluation: a natural-language prompt plus grading
// context.
type EvalCase struct {
	// Name identifies the evaluation in output and history.
	Name string `yaml:"name"`

	// Description tells the grader what the evaluation exercises.
	Description string `yaml:"description,omitempty"`

	// Prompt is the natural-language request driving tool selection.
	Prompt string `yaml:"prompt"`

	// ExpectedResult tells the grader what a good response looks like.
	ExpectedResult string `yaml:"expected_result,omitempty"`

	// Expect is an optional boolean expression evaluated against the
	// finished result (e.g. `score.average >= 3 && success`).
	Expect string `yaml:"expect,omitempty"`
}

// Load reads, parses, defaults, and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, err
	}
	suite.Path = path
	return suite, nil
}

// Parse parses and validates suite YAML.
func Parse(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite file: %w", err)
	}

	suite.applyDefaults()

	if err := suite.Validate(); err != nil {
		return nil, err
	}

	return &suite, nil
}

// applyDefaults fills unset fields with defaults.
func (s *Suite) applyDefaults() {
	s.Model.Provider = strings.ToLower(strings.TrimSpace(s.Model.Provider))

	if s.Server.Timeout == 0 {
		s.Server.Timeout = DefaultTimeoutSeconds
	}
}

// Validate checks the suite for structural problems. Transport-kind
// resolution is deliberately not checked here; the transport layer owns
// that decision and its error reporting.
func (s *Suite) Validate() error {
	if err := s.Model.Validate(); err != nil {
		return err
	}
	if err := s.Server.Validate(); err != nil {
		return err
	}

	if len(s.Evals) == 0 {
		return &errors.InvalidConfigurationError{
			Field:      "evals",
			Reason:     "at least one evaluation is required",
			Suggestion: "Add an entry with a name and prompt under evals:",
		}
	}

	seen := make(map[string]bool, len(s.Evals))
	for i, eval := range s.Evals {
		if eval.Name == "" {
			return &errors.InvalidConfigurationError{
				Field:  fmt.Sprintf("evals[%d].name", i),
				Reason: "evaluation name is required",
			}
		}
		if eval.Prompt == "" {
			return &errors.InvalidConfigurationError{
				Field:  fmt.Sprintf("evals[%d].prompt", i),
				Reason: "evaluation prompt is required",
			}
		}
		if seen[eval.Name] {
			return &errors.InvalidConfigurationError{
				Field:      fmt.Sprintf("evals[%d].name", i),
				Reason:     fmt.Sprintf("duplicate evaluation name %q", eval.Name),
				Suggestion: "Evaluation names must be unique within a suite",
			}
		}
		seen[eval.Name] = true
	}

	return nil
}

// Validate checks the model block.
func (m *ModelConfig) Validate() error {
	switch m.Provider {
	case ProviderOpenAI, ProviderAzure, ProviderAnthropic:
		// Valid
	case "":
		return &errors.InvalidConfigurationError{
			Field:      "model.provider",
			Reason:     "provider is required",
			Suggestion: "Set model.provider to openai, azure, or anthropic",
		}
	default:
		return &errors.InvalidConfigurationError{
			Field:      "model.provider",
			Reason:     fmt.Sprintf("unknown provider %q", m.Provider),
			Suggestion: "Supported providers: openai, azure, anthropic",
		}
	}

	if m.Name == "" {
		return &errors.InvalidConfigurationError{
			Field:  "model.name",
			Reason: "model name is required",
		}
	}

	if m.Provider == ProviderAzure && m.BaseURL == "" {
		return &errors.InvalidConfigurationError{
			Field:      "model.base_url",
			Reason:     "azure provider requires a resource endpoint",
			Suggestion: "Set model.base_url to https://<resource>.openai.azure.com",
		}
	}

	if m.Temperature != nil && (*m.Temperature < 0 || *m.Temperature > 2) {
		return &errors.InvalidConfigurationError{
			Field:  "model.temperature",
			Reason: fmt.Sprintf("temperature %v is outside [0, 2]", *m.Temperature),
		}
	}

	if m.MaxTokens != nil && *m.MaxTokens <= 0 {
		return &errors.InvalidConfigurationError{
			Field:  "model.max_tokens",
			Reason: "max_tokens must be positive",
		}
	}

	if m.RequestsPerSecond < 0 {
		return &errors.InvalidConfigurationError{
			Field:  "model.requests_per_second",
			Reason: "requests_per_second must be non-negative",
		}
	}

	return nil
}

// Validate checks the server block.
func (s *ServerConfig) Validate() error {
	if s.Path == "" && s.URL == "" {
		return &errors.InvalidConfigurationError{
			Field:      "server",
			Reason:     "either path or url is required",
			Suggestion: "Set server.path to a server artifact or server.url to a running endpoint",
		}
	}

	if s.Timeout < 0 {
		return &errors.InvalidConfigurationError{
			Field:  "server.timeout",
			Reason: "timeout must be non-negative",
		}
	}

	// Screen args for shell injection
	for i, arg := range s.Args {
		if err := ValidateArg(arg); err != nil {
			return &errors.InvalidConfigurationError{
				Field:  fmt.Sprintf("server.args[%d]", i),
				Reason: err.Error(),
			}
		}
	}

	// Validate env vars
	for i, env := range s.Env {
		if err := ValidateEnv(env); err != nil {
			return &errors.InvalidConfigurationError{
				Field:  fmt.Sprintf("server.env[%d]", i),
				Reason: err.Error(),
			}
		}
	}

	return nil
}
