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

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/EbramTawfik/mcp-evals/pkg/errors"
)

// Exit codes. Scripts branch on these: 0 means every evaluation passed,
// 1 means at least one failed (or the run itself broke), 2 means the
// suite never ran because its configuration is invalid.
const (
	ExitSuccess       = 0
	ExitEvalFailed    = 1
	ExitInvalidConfig = 2
)

// ExitError is an error that carries an exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewEvalFailedError creates an error for evaluation failures.
func NewEvalFailedError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitEvalFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidConfigError creates an error for unusable suite files.
func NewInvalidConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCodeFor classifies an error into an exit code. Configuration
// problems anywhere in the chain map to ExitInvalidConfig; everything
// else is an evaluation failure.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if pkgerrors.IsInvalidConfiguration(err) {
		return ExitInvalidConfig
	}
	return ExitEvalFailed
}

// HandleExitError prints the error, a suggestion when one is attached,
// and exits with the classified code. A nil error returns without
// exiting so main can fall through.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	if msg := err.Error(); msg != "" {
		fmt.Fprintln(os.Stderr, "Error:", msg)
	}
	if suggestion := pkgerrors.SuggestionFor(err); suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", suggestion)
	}

	os.Exit(ExitCodeFor(err))
}
