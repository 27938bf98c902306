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

package errors

import (
	"errors"
)

// IsInvalidConfiguration reports whether err's tree contains an
// InvalidConfigurationError.
func IsInvalidConfiguration(err error) bool {
	var target *InvalidConfigurationError
	return errors.As(err, &target)
}

// IsServerStart reports whether err's tree contains a ServerStartError.
func IsServerStart(err error) bool {
	var target *ServerStartError
	return errors.As(err, &target)
}

// IsConnection reports whether err's tree contains a ConnectionError.
func IsConnection(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// IsProvider reports whether err's tree contains a ProviderError.
func IsProvider(err error) bool {
	var target *ProviderError
	return errors.As(err, &target)
}

// IsTimeout reports whether err's tree contains a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// SuggestionFor extracts actionable guidance from err's tree, checking the
// error types that carry a suggestion. Returns the empty string when none
// is found.
func SuggestionFor(err error) string {
	var cfgErr *InvalidConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Suggestion != "" {
		return cfgErr.Suggestion
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.Suggestion != "" {
		return provErr.Suggestion
	}
	return ""
}
