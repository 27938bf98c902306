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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// shellInjectionPatterns are patterns that could indicate shell injection attempts.
var shellInjectionPatterns = []string{
	";", "&&", "||", "|", "`", "$(", "${", "\n", "\r",
}

// envKeyRegex validates environment variable keys.
var envKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// envSubstRegex matches ${VAR} substitution sites in env values.
var envSubstRegex = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// ValidateArg validates a command argument for shell injection.
func ValidateArg(arg string) error {
	for _, pattern := range shellInjectionPatterns {
		if strings.Contains(arg, pattern) {
			return fmt.Errorf("argument contains potentially unsafe pattern %q", pattern)
		}
	}
	return nil
}

// ValidateEnv validates an environment variable.
func ValidateEnv(env string) error {
	// Must be in KEY=VALUE format
	parts := strings.SplitN(env, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("environment variable must be in KEY=VALUE format")
	}

	key := parts[0]
	if key == "" {
		return fmt.Errorf("environment variable key is required")
	}

	if !envKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid environment variable key: %s", key)
	}

	// Value is allowed to contain ${VAR} for variable substitution
	// but not shell injection patterns (except ${)
	value := parts[1]
	for _, pattern := range shellInjectionPatterns {
		if pattern == "${" {
			continue
		}
		if strings.Contains(value, pattern) {
			return fmt.Errorf("environment value contains potentially unsafe pattern %q", pattern)
		}
	}

	return nil
}

// ExpandEnv substitutes ${VAR} references in each KEY=VALUE entry with the
// process environment at call time. Unknown variables expand to the empty
// string. Bare $VAR is left untouched.
func ExpandEnv(envs []string) []string {
	if len(envs) == 0 {
		return nil
	}

	result := make([]string, len(envs))
	for i, env := range envs {
		result[i] = envSubstRegex.ReplaceAllStringFunc(env, func(match string) string {
			name := envSubstRegex.FindStringSubmatch(match)[1]
			return os.Getenv(name)
		})
	}
	return result
}

// sensitiveKeyPatterns are patterns that indicate a sensitive value.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH", "API_KEY",
}

// IsSensitiveEnvKey returns true if the key appears to contain sensitive data.
func IsSensitiveEnvKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// RedactEnv redacts sensitive values from an environment variable list.
func RedactEnv(envs []string) []string {
	result := make([]string, len(envs))
	for i, env := range envs {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 && IsSensitiveEnvKey(parts[0]) {
			result[i] = parts[0] + "=***REDACTED***"
		} else {
			result[i] = env
		}
	}
	return result
}
