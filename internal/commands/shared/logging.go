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
	"log/slog"
	"os"

	"github.com/EbramTawfik/mcp-evals/internal/log"
)

// NewLogger builds the CLI logger. The environment sets the baseline
// (MCP_EVALS_DEBUG, LOG_LEVEL, LOG_FORMAT); --verbose and --quiet
// override the level. Logs go to stderr so styled output on stdout
// stays parseable.
func NewLogger() *slog.Logger {
	cfg := log.FromEnv()

	// Human-oriented text unless the environment asked for json.
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Format = log.FormatText
	}

	switch {
	case quietFlag:
		cfg.Level = "error"
	case verboseFlag:
		cfg.Level = "debug"
	}

	return log.New(cfg)
}
