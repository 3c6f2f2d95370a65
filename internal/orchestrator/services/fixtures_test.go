// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/workflows"
)

const (
	testOperator = "operator@example.com"
	testVersion0 = int64(1700000000000)
)

var testTemplates = Templates{
	TemplateIngestionS3:      "https://templates.example.com/ingestion-s3.json",
	TemplateIngestionKafka:   "https://templates.example.com/ingestion-kafka.json",
	TemplateIngestionKinesis: "https://templates.example.com/ingestion-kinesis.json",
	TemplateKafkaConnector:   "https://templates.example.com/kafka-s3-sink.json",
	TemplateETL:              "https://templates.example.com/data-pipeline.json",
	TemplateDataModeling:     "https://templates.example.com/data-modeling.json",
}

// serviceFixture wires the services to an in-memory store and a mocked
// workflow engine.
type serviceFixture struct {
	store     *database.GormDB
	temporal  *MockTemporalClient
	events    *recordingPublisher
	pipelines *PipelineService
	projects  *ProjectService
	clock     time.Time
}

func newServiceFixture(t *testing.T, opts ...PipelineOption) *serviceFixture {
	t.Helper()
	db := database.UseFreshInMemoryDatabase(t).DB

	f := &serviceFixture{
		store:    db,
		temporal: &MockTemporalClient{},
		events:   &recordingPublisher{},
		clock:    time.UnixMilli(testVersion0),
	}
	cfg := &config.AppConfig{
		Workflow: config.WorkflowConfig{
			StackPrefix:        "clickstream",
			TokenRetention:     24 * time.Hour,
			StatusRefreshLimit: 4,
			StackPollInterval:  time.Second,
			SupportedRegions:   []string{"us-east-1", "eu-west-1"},
		},
	}

	opts = append([]PipelineOption{
		WithEventPublisher(f.events),
		WithClock(func() time.Time { return f.clock }),
	}, opts...)
	f.pipelines = NewPipelineService(db, f.temporal, cfg, opts...)
	f.projects = NewProjectService(db, f.pipelines)

	require.NoError(t, SaveTemplates(context.Background(), db, testTemplates))
	return f
}

func (f *serviceFixture) createProject(t *testing.T, id string) *models.Project {
	t.Helper()
	project := &models.Project{ID: id, Name: "project-" + id, Region: "us-east-1"}
	require.NoError(t, f.store.CreateProject(context.Background(), project))
	return project
}

func (f *serviceFixture) expectStart(workflowName string, err error) *mock.Call {
	if err != nil {
		return f.temporal.On("StartWorkflow", mock.Anything, mock.Anything, workflowName, mock.Anything).Return(nil, err)
	}
	return f.temporal.On("StartWorkflow", mock.Anything, mock.Anything, workflowName, mock.Anything).Return(startedRun{id: workflowName}, nil)
}

// createPipeline provisions a pipeline through the service and returns its
// stored record.
func (f *serviceFixture) createPipeline(t *testing.T, projectID string) *models.Pipeline {
	t.Helper()
	f.expectStart(workflows.StackWorkflowName, nil).Once()

	id, err := f.pipelines.Create(context.Background(), "token-"+projectID, testOperator, newS3Pipeline(projectID))
	require.NoError(t, err)

	stored, err := f.store.GetPipeline(context.Background(), projectID, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func newS3Pipeline(projectID string) *models.Pipeline {
	return &models.Pipeline{
		ProjectID: projectID,
		Name:      "Pipeline-01",
		Region:    "us-east-1",
		AppIDs:    datatypes.JSONSlice[string]{"app1"},
		Bucket:    datatypes.NewJSONType(models.S3Bucket{Name: "pipeline-bucket", Prefix: "clickstream/"}),
		IngestionServer: datatypes.NewJSONType(models.IngestionServer{
			Network: models.Network{
				VpcID:            "vpc-0000",
				PublicSubnetIDs:  []string{"subnet-1111", "subnet-2222"},
				PrivateSubnetIDs: []string{"subnet-3333", "subnet-4444"},
			},
			Size:     models.ServerSize{ServerMin: 2, ServerMax: 4, WarmPoolSize: 1, ScaleOnCPUUtilizationPercent: 50},
			SinkType: models.SinkTypeS3,
			SinkS3: &models.SinkS3{
				SinkBucket:      models.S3Bucket{Name: "sink-bucket", Prefix: "data/"},
				S3BatchMaxBytes: 50,
				S3BatchTimeout:  30,
			},
		}),
		ETL:       datatypes.NewJSONType[*models.ETL](nil),
		DataModel: datatypes.NewJSONType[*models.DataModel](nil),
		Workflow:  datatypes.NewJSONType[*models.StackPlan](nil),
	}
}

func withETL(p *models.Pipeline) *models.Pipeline {
	p.ETL = datatypes.NewJSONType(&models.ETL{
		AppIDs:              []string{"app1"},
		SourceS3Bucket:      models.S3Bucket{Name: "sink-bucket", Prefix: "data/"},
		SinkS3Bucket:        models.S3Bucket{Name: "ods-bucket", Prefix: "ods/"},
		DataFreshnessInHour: 72,
		ScheduleExpression:  "rate(1 hour)",
	})
	return p
}

// editable returns a copy of stored suitable as an update request body.
func editable(stored *models.Pipeline) *models.Pipeline {
	p := newS3Pipeline(stored.ProjectID)
	p.PipelineID = stored.PipelineID
	p.Version = stored.Version
	return p
}
