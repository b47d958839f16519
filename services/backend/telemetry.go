// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const (
	metricsNamespace = "fintrack"
	backendSubsystem = "backend"
	meterName        = "github.com/AdityaNittala03/Smart-Finance-Assistant---AI-Driven-Budgeting-Web-App/services/backend"
)

// Telemetry exposes the backend's metrics on one private registry.
//
// # Description
//
// HTTP traffic is counted with Prometheus client metrics. Domain events
// (logins, registrations, created records) are OpenTelemetry counters
// exported to the same registry through the OTel Prometheus exporter, so
// a single /metrics scrape sees both.
//
// # Fields
//
//   - RequestsTotal: requests by method, route template and status
//   - RequestDuration: request latency by method and route template
//
// # Thread Safety
//
// All operations are thread-safe.
type Telemetry struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	registry   *prometheus.Registry
	provider   *sdkmetric.MeterProvider
	authEvents otelmetric.Int64Counter
	created    otelmetric.Int64Counter
}

// NewTelemetry registers all metrics on reg. A nil reg gets a fresh
// private registry.
func NewTelemetry(reg *prometheus.Registry, version string) (*Telemetry, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	t := &Telemetry{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: backendSubsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "route"},
		),
		registry: reg,
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg), otelprom.WithoutTargetInfo())
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	res := resource.NewWithAttributes("",
		attribute.String("service.name", "fintrack-backend"),
		attribute.String("service.version", version),
	)
	t.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	meter := t.provider.Meter(meterName)
	if t.authEvents, err = meter.Int64Counter("fintrack.backend.auth.events",
		otelmetric.WithDescription("Authentication events by event and outcome")); err != nil {
		return nil, fmt.Errorf("create auth counter: %w", err)
	}
	if t.created, err = meter.Int64Counter("fintrack.backend.records.created",
		otelmetric.WithDescription("Records created by kind")); err != nil {
		return nil, fmt.Errorf("create records counter: %w", err)
	}
	return t, nil
}

// Registry returns the registry the metrics live on.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }

// Handler serves the registry in the Prometheus text format.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Middleware records every request under its route template. Unmatched
// requests share the "unmatched" route so 404 scans cannot blow up the
// label space.
func (t *Telemetry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		t.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		t.RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordAuth counts an authentication event such as ("login", "locked").
func (t *Telemetry) RecordAuth(ctx context.Context, event, outcome string) {
	t.authEvents.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

// RecordCreated counts a created record of kind.
func (t *Telemetry) RecordCreated(ctx context.Context, kind string) {
	t.created.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("kind", kind)))
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
