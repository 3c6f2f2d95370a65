// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/noldarim/clickstream/internal/config"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.PipelineOperation("create", OutcomeSuccess)
	m.PipelineOperation("create", OutcomeSuccess)
	m.PipelineOperation("update", OutcomeConflict)
	m.WorkflowStart("StackWorkflow", nil)
	m.WorkflowStart("StackWorkflow", errors.New("unavailable"))
	m.StatusRefresh("changed")
	m.HTTPRequest(http.MethodGet, "/api/pipeline", http.StatusOK, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PipelineOperations.WithLabelValues("create", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineOperations.WithLabelValues("update", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowStarts.WithLabelValues("StackWorkflow", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusRefreshes.WithLabelValues("changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/pipeline", "200")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PipelineOperation("create", OutcomeSuccess)
		m.WorkflowStart("StackWorkflow", nil)
		m.StatusRefresh("unchanged")
		m.HTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.PipelineOperation("delete", OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clickstream_pipeline_operations_total{operation="delete",outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), &config.TelemetryConfig{TracingEnabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, Tracer())
}

func TestInitTracer_Enabled(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	shutdown, err := InitTracer(context.Background(), &config.TelemetryConfig{
		ServiceName:    "clickstream-test",
		TracingEnabled: true,
		OTLPEndpoint:   "127.0.0.1:4318",
		SampleRatio:    1,
	})
	require.NoError(t, err)

	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, isSDK)
	assert.NoError(t, shutdown(context.Background()))
}
