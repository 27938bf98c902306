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

// Package tracing wires optional OpenTelemetry span export for runs. When
// disabled it hands out no-op tracers so callers never branch.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls span export.
type Config struct {
	// Enabled turns span export on. When false, Setup returns a provider
	// whose tracers are no-ops.
	Enabled bool

	// ServiceName and ServiceVersion identify this process in exported
	// spans.
	ServiceName    string
	ServiceVersion string

	// Writer receives exported spans. Defaults to os.Stderr so span
	// output never mixes with result output on stdout.
	Writer io.Writer

	// PrettyPrint formats exported spans for human reading.
	PrettyPrint bool
}

// Provider owns the tracer provider lifecycle.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup builds a tracer provider per the configuration and installs it as
// the global provider when enabled.
func Setup(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(writer)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console exporter: %w", err)
	}

	// Empty schema URL avoids conflicts when merging with the default
	// resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return p.tp.Tracer(name)
}

// Enabled reports whether spans are actually exported.
func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown flushes pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
