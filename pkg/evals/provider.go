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

package evals

import (
	"fmt"
	"os"

	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/pkg/errors"
	"github.com/EbramTawfik/mcp-evals/pkg/llm"
	"github.com/EbramTawfik/mcp-evals/pkg/llm/providers"
)

// rateLimitBurst allows short request bursts before the per-second
// throttle engages.
const rateLimitBurst = 2

// BuildProvider constructs the LLM provider named by the model config,
// reading credentials from the environment. The returned provider
// retries transient failures and, when the config sets a positive
// requests_per_second, throttles outbound requests.
func BuildProvider(cfg ModelConfig) (llm.Provider, error) {
	base, err := newBaseProvider(cfg)
	if err != nil {
		return nil, err
	}

	var provider llm.Provider = llm.NewRetryableProvider(base, llm.DefaultRetryConfig())
	if cfg.RequestsPerSecond > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerSecond, rateLimitBurst)
	}
	return provider, nil
}

func newBaseProvider(cfg ModelConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return providers.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY"), cfg.BaseURL)
	case config.ProviderAzure:
		return providers.NewAzureOpenAIProvider(os.Getenv("AZURE_OPENAI_API_KEY"), cfg.BaseURL)
	case config.ProviderAnthropic:
		return providers.NewAnthropicProvider(os.Getenv("ANTHROPIC_API_KEY"))
	default:
		return nil, &errors.InvalidConfigurationError{
			Field:      "model.provider",
			Reason:     fmt.Sprintf("unknown provider %q", cfg.Provider),
			Suggestion: "Use one of: openai, azure, anthropic",
		}
	}
}
