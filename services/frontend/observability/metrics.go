// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and tracing for the frontend core.
//
// # Description
//
// Prometheus metrics cover API traffic, navigation outcomes, page render
// failures, session refreshes and notifications. Every recording method is
// safe to call on a nil *Metrics, so components take metrics as an
// optional dependency.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "fintrack"

const (
	apiSubsystem     = "api"
	routerSubsystem  = "router"
	sessionSubsystem = "session"
	notifySubsystem  = "notify"
)

// Metrics holds all Prometheus metrics for the frontend core.
//
// # Fields
//
//   - APIRequestsTotal: requests by method and status class (2xx, 4xx, network, cancelled)
//   - APIRequestDuration: request latency by method
//   - AuthSignalsTotal: 401/403/5xx signals published, by kind
//   - NavigationsTotal: Navigate calls by outcome
//   - RenderErrorsTotal: page render failures by page
//   - SessionRefreshesTotal: token refresh attempts by result
//   - SessionTransitionsTotal: session state changes by target state
//   - NotificationsTotal: notifications shown by kind
type Metrics struct {
	APIRequestsTotal        *prometheus.CounterVec
	APIRequestDuration      *prometheus.HistogramVec
	AuthSignalsTotal        *prometheus.CounterVec
	NavigationsTotal        *prometheus.CounterVec
	RenderErrorsTotal       *prometheus.CounterVec
	SessionRefreshesTotal   *prometheus.CounterVec
	SessionTransitionsTotal *prometheus.CounterVec
	NotificationsTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on reg. A nil reg gets a
// fresh private registry, retrievable with Registry.
//
// # Limitations
//
//   - Panics if the same registry already carries these metrics.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "requests_total",
				Help:      "Total API requests by method and status class",
			},
			[]string{"method", "status"},
		),

		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "request_duration_seconds",
				Help:      "API request latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		AuthSignalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: apiSubsystem,
				Name:      "signals_total",
				Help:      "Global signals published by the API client",
			},
			[]string{"kind"},
		),

		NavigationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: routerSubsystem,
				Name:      "navigations_total",
				Help:      "Navigate calls by outcome",
			},
			[]string{"outcome"},
		),

		RenderErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: routerSubsystem,
				Name:      "render_errors_total",
				Help:      "Page render failures by page",
			},
			[]string{"page"},
		),

		SessionRefreshesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "refreshes_total",
				Help:      "Token refresh attempts by result",
			},
			[]string{"result"},
		),

		SessionTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: sessionSubsystem,
				Name:      "transitions_total",
				Help:      "Session state transitions by target state",
			},
			[]string{"state"},
		),

		NotificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: notifySubsystem,
				Name:      "shown_total",
				Help:      "Notifications shown by kind",
			},
			[]string{"kind"},
		),
	}
}

// Registry returns the registry the metrics were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// =============================================================================
// Helper Methods
// =============================================================================

// StatusClass buckets an HTTP status for labeling. Zero means the request
// never produced a response.
func StatusClass(status int, cancelled bool) string {
	switch {
	case cancelled:
		return "cancelled"
	case status == 0:
		return "network"
	case status < 100 || status > 599:
		return strconv.Itoa(status)
	default:
		return strconv.Itoa(status/100) + "xx"
	}
}

// RecordRequest records one finished API request.
//
// # Inputs
//
//   - method: HTTP method.
//   - status: HTTP status, or 0 when no response arrived.
//   - cancelled: Whether the caller aborted the request.
//   - seconds: Wall time spent.
func (m *Metrics) RecordRequest(method string, status int, cancelled bool, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(method, StatusClass(status, cancelled)).Inc()
	m.APIRequestDuration.WithLabelValues(method).Observe(seconds)
}

// RecordSignal counts a published global signal.
func (m *Metrics) RecordSignal(kind string) {
	if m == nil {
		return
	}
	m.AuthSignalsTotal.WithLabelValues(kind).Inc()
}

// RecordNavigation counts a Navigate call by outcome.
func (m *Metrics) RecordNavigation(outcome string) {
	if m == nil {
		return
	}
	m.NavigationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRenderError counts a failed page render.
func (m *Metrics) RecordRenderError(page string) {
	if m == nil {
		return
	}
	m.RenderErrorsTotal.WithLabelValues(page).Inc()
}

// RecordRefresh counts a token refresh attempt.
func (m *Metrics) RecordRefresh(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.SessionRefreshesTotal.WithLabelValues(result).Inc()
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordNotification counts a shown notification.
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(kind).Inc()
}
