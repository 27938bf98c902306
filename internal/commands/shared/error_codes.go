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

package shared

// Error codes for structured JSON output
const (
	// Suite validation errors (E001-E099)
	ErrorCodeInvalidYAML   = "E001" // Invalid YAML syntax
	ErrorCodeInvalidConfig = "E002" // Suite fails semantic validation
	ErrorCodeFileNotFound  = "E003" // Suite or results file not found

	// Run errors (E100-E199)
	ErrorCodeConnectFailed = "E101" // Server unreachable or launch failed
	ErrorCodeEvalFailed    = "E102" // One or more evaluations failed
	ErrorCodeProviderError = "E103" // LLM provider rejected the request

	// Resource errors (E200-E299)
	ErrorCodeNotFound = "E201" // Stored run not found
	ErrorCodeInternal = "E202" // Internal error
)
