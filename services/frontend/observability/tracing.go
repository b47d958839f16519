// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation scope used by the frontend packages.
const TracerName = "fintrack/frontend"

// Tracing owns a tracer provider and its shutdown.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
}

// NewTracing builds a provider that pretty-prints spans to w. A nil w
// yields a no-op provider.
//
// # Outputs
//
//   - *Tracing: The provider wrapper. Call Shutdown to flush spans.
//   - error: Non-nil if the exporter cannot be created.
func NewTracing(w io.Writer) (*Tracing, error) {
	if w == nil {
		return &Tracing{
			provider: noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating span exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return &Tracing{provider: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns the frontend tracer.
func (t *Tracing) Tracer() trace.Tracer {
	if t == nil {
		return otel.Tracer(TracerName)
	}
	return t.provider.Tracer(TracerName)
}

// Provider returns the wrapped provider for components that take one,
// such as the backend's gin middleware.
func (t *Tracing) Provider() trace.TracerProvider { return t.provider }

// Install makes this provider the process-global one.
func (t *Tracing) Install() {
	otel.SetTracerProvider(t.provider)
}

// Shutdown flushes and stops the provider.
func (t *Tracing) Shutdown(ctx context.Context) error {
	return t.shutdown(ctx)
}
