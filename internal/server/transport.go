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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/EbramTawfik/mcp-evals/internal/config"
	"github.com/EbramTawfik/mcp-evals/pkg/errors"
)

// ResolveTransportKind decides which transport a server configuration
// implies. An explicit transport field wins and is returned lower-cased even
// when it names an unsupported kind; rejecting unsupported kinds is
// TransportBuilder.Create's job, not the resolver's. Otherwise a url implies
// http and anything else falls through to stdio.
func ResolveTransportKind(cfg config.ServerConfig) TransportKind {
	if cfg.Transport != "" {
		return TransportKind(strings.ToLower(cfg.Transport))
	}
	if cfg.URL != "" {
		return TransportHTTP
	}
	return TransportStdio
}

// TransportBuilder creates transport handles for server configurations,
// starting and readiness-checking server processes when the configuration
// calls for it.
type TransportBuilder struct {
	// Launcher starts harness-owned server processes (optional).
	Launcher *Launcher

	// Prober readiness-checks http-launched servers (optional).
	Prober *Prober

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Create builds a transport handle for the resolved kind.
//
// http with a path launches the artifact and polls readiness before
// returning, killing the half-started process if readiness never arrives.
// http without a path assumes the server is already running. stdio never
// launches anything here: the protocol client spawns the child lazily on
// first use, so the handle only carries the command line.
func (b *TransportBuilder) Create(ctx context.Context, kind TransportKind, cfg config.ServerConfig) (*TransportHandle, error) {
	switch kind {
	case TransportHTTP:
		return b.createHTTP(ctx, cfg)
	case TransportStdio:
		return b.createStdio(cfg)
	default:
		return nil, &errors.InvalidConfigurationError{
			Field:      "server.transport",
			Reason:     fmt.Sprintf("unsupported transport %q", string(kind)),
			Suggestion: `Use "stdio" or "http"`,
		}
	}
}

func (b *TransportBuilder) createHTTP(ctx context.Context, cfg config.ServerConfig) (*TransportHandle, error) {
	if cfg.URL == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "server.url",
			Reason:     "http transport requires a url",
			Suggestion: "Set server.url to the endpoint, for example http://localhost:3001",
		}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &errors.InvalidConfigurationError{
			Field:  "server.url",
			Reason: fmt.Sprintf("%q is not an absolute http or https URL", cfg.URL),
		}
	}

	// No path: the server is assumed to be running already. No launch, no
	// readiness wait.
	if cfg.Path == "" {
		return &TransportHandle{Kind: TransportHTTP, URL: cfg.URL}, nil
	}

	proc, err := b.launcher().Start(ctx, DetectServerType(cfg.Path), cfg.Path, cfg.Args, config.ExpandEnv(cfg.Env))
	if err != nil {
		return nil, err
	}

	// The configured timeout bounds the overall readiness wait.
	probeCtx := ctx
	if timeout := cfg.TimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if !b.prober().IsServerReady(probeCtx, cfg.URL) {
		_ = proc.Stop(5 * time.Second)
		return nil, &errors.ServerStartError{
			Command:  proc.Command(),
			ExitCode: proc.ExitCode(),
			Stderr:   proc.Stderr(),
		}
	}

	return &TransportHandle{Kind: TransportHTTP, URL: cfg.URL, Process: proc}, nil
}

func (b *TransportBuilder) createStdio(cfg config.ServerConfig) (*TransportHandle, error) {
	if cfg.Path == "" {
		return nil, &errors.InvalidConfigurationError{
			Field:      "server.path",
			Reason:     "stdio transport requires a path",
			Suggestion: "Set server.path to the server artifact to launch",
		}
	}

	spec, err := BuildLaunchSpec(DetectServerType(cfg.Path), cfg.Path, cfg.Args)
	if err != nil {
		return nil, err
	}

	// The lazily spawned child inherits the harness working directory; the
	// http launch path runs servers from their artifact directory instead.
	return &TransportHandle{
		Kind:    TransportStdio,
		Command: spec.Command,
		Args:    spec.Args,
		Env:     config.ExpandEnv(cfg.Env),
	}, nil
}

func (b *TransportBuilder) launcher() *Launcher {
	if b.Launcher != nil {
		return b.Launcher
	}
	return &Launcher{Logger: b.Logger}
}

func (b *TransportBuilder) prober() *Prober {
	if b.Prober != nil {
		return b.Prober
	}
	return &Prober{Logger: b.Logger}
}
