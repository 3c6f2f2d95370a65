// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/telemetry"
)

type mockTemporal struct {
	mock.Mock
}

func (m *mockTemporal) StartWorkflow(ctx context.Context, workflowID string, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	callArgs := m.Called(ctx, workflowID, workflow, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).(client.WorkflowRun), callArgs.Error(1)
}

func (m *mockTemporal) GetWorkflowStatus(ctx context.Context, workflowID string) (temporal.WorkflowStatus, error) {
	args := m.Called(ctx, workflowID)
	return args.Get(0).(temporal.WorkflowStatus), args.Error(1)
}

func (m *mockTemporal) CancelWorkflow(ctx context.Context, workflowID string) error {
	return m.Called(ctx, workflowID).Error(0)
}

func (m *mockTemporal) GetTaskQueue() string { return "test-queue" }

func (m *mockTemporal) Close() error { return nil }

type stubRun struct{}

func (stubRun) GetID() string {
	return ""
}

func (stubRun) GetRunID() string {
	return ""
}

func (stubRun) Get(ctx context.Context, valuePtr interface{}) error {
	return nil
}

func (stubRun) GetWithOptions(ctx context.Context, valuePtr interface{}, options client.WorkflowRunGetOptions) error {
	return nil
}

// apiFixture serves the router against an in-memory store.
type apiFixture struct {
	handler   http.Handler
	store     *database.GormDB
	temporal  *mockTemporal
	publisher *ChannelPublisher
	metrics   *telemetry.Metrics
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := database.UseFreshInMemoryDatabase(t).DB

	cfg := &config.AppConfig{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Workflow: config.WorkflowConfig{
			StackPrefix:        "clickstream",
			TokenRetention:     24 * time.Hour,
			StatusRefreshLimit: 2,
			StackPollInterval:  time.Second,
			SupportedRegions:   []string{"us-east-1", "eu-west-1"},
		},
	}

	f := &apiFixture{
		store:     db,
		temporal:  &mockTemporal{},
		publisher: NewChannelPublisher(64),
		metrics:   telemetry.NewMetrics(),
	}
	pipelines := services.NewPipelineService(db, f.temporal, cfg,
		services.WithEventPublisher(f.publisher),
		services.WithMetrics(f.metrics))
	projects := services.NewProjectService(db, pipelines)
	f.handler = NewRouter(cfg, NewHandlers(pipelines, projects, cfg.Workflow.SupportedRegions), NewClientRegistry(), f.metrics)

	require.NoError(t, services.SaveTemplates(context.Background(), db, services.Templates{
		services.TemplateIngestionS3:      "https://templates.example.com/ingestion-s3.json",
		services.TemplateIngestionKafka:   "https://templates.example.com/ingestion-kafka.json",
		services.TemplateIngestionKinesis: "https://templates.example.com/ingestion-kinesis.json",
		services.TemplateKafkaConnector:   "https://templates.example.com/kafka-s3-sink.json",
		services.TemplateETL:              "https://templates.example.com/data-pipeline.json",
		services.TemplateDataModeling:     "https://templates.example.com/data-modeling.json",
	}))
	return f
}

func (f *apiFixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) createProject(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.CreateProject(context.Background(), &models.Project{ID: id, Name: "project-" + id, Region: "us-east-1"}))
}

func (f *apiFixture) expectStart() *mock.Call {
	return f.temporal.On("StartWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stubRun{}, nil)
}

// envelope is the decoded form of every response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func validationItems(t *testing.T, env envelope) []services.ValidationItem {
	t.Helper()
	var items []services.ValidationItem
	require.NoError(t, json.Unmarshal(env.Error, &items))
	return items
}

func s3PipelineBody(projectID string) string {
	return `{
		"projectId": "` + projectID + `",
		"name": "Pipeline-01",
		"region": "us-east-1",
		"appIds": ["app1"],
		"bucket": {"name": "pipeline-bucket", "prefix": "clickstream/"},
		"ingestionServer": {
			"network": {"vpcId": "vpc-0000", "publicSubnetIds": ["subnet-1"], "privateSubnetIds": ["subnet-2"]},
			"size": {"serverMin": 2, "serverMax": 4, "warmPoolSize": 1, "scaleOnCpuUtilizationPercent": 50},
			"sinkType": "s3",
			"sinkS3": {"sinkBucket": {"name": "sink-bucket", "prefix": "data/"}, "s3BatchMaxBytes": 50, "s3BatchTimeout": 30},
			"sinkKafka": {"topic": "ignored"}
		}
	}`
}

func requestID(token string) map[string]string {
	return map[string]string{services.RequestIDHeader: token}
}
