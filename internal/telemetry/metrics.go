// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded on operation counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds the control plane collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PipelineOperations *prometheus.CounterVec
	WorkflowStarts     *prometheus.CounterVec
	StatusRefreshes    *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		PipelineOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickstream_pipeline_operations_total",
				Help: "Pipeline lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		WorkflowStarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickstream_workflow_starts_total",
				Help: "Provisioning workflow start attempts",
			},
			[]string{"workflow", "outcome"},
		),
		StatusRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickstream_status_refreshes_total",
				Help: "Workflow status lookups made on read paths",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clickstream_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clickstream_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(m.PipelineOperations, m.WorkflowStarts, m.StatusRefreshes, m.HTTPRequests, m.HTTPDuration)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PipelineOperation counts one orchestrator operation.
func (m *Metrics) PipelineOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.PipelineOperations.WithLabelValues(operation, outcome).Inc()
}

// WorkflowStart counts one workflow start attempt.
func (m *Metrics) WorkflowStart(workflow string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.WorkflowStarts.WithLabelValues(workflow, outcome).Inc()
}

// StatusRefresh counts one poller lookup.
func (m *Metrics) StatusRefresh(result string) {
	if m == nil {
		return
	}
	m.StatusRefreshes.WithLabelValues(result).Inc()
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
