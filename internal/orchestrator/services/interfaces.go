// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"

	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/protocol"
)

// TemporalClient defines the methods used by services from the temporal client.
// Owned by the services package so both the real client and test mocks satisfy it.
type TemporalClient interface {
	StartWorkflow(ctx context.Context, workflowID string, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	GetWorkflowStatus(ctx context.Context, workflowID string) (temporal.WorkflowStatus, error)
	CancelWorkflow(ctx context.Context, workflowID string) error
	GetTaskQueue() string
	Close() error
}

// Store is the metadata store. Reads of missing records return (nil, nil).
type Store interface {
	ListProjects(ctx context.Context, order string) ([]*models.Project, error)
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) error
	UpdateProject(ctx context.Context, project *models.Project) error
	SetProjectPipeline(ctx context.Context, projectID, pipelineID string) error
	DeleteProject(ctx context.Context, projectID, operator string) error

	GetPipeline(ctx context.Context, projectID, pipelineID string) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, projectID, versionTag string) ([]*models.Pipeline, error)
	CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error
	ConditionalWritePipeline(ctx context.Context, expectedVersion string, pipeline *models.Pipeline) error
	UpdatePipelineStatus(ctx context.Context, projectID, pipelineID, version string, status models.PipelineStatus) error
	DeletePipeline(ctx context.Context, projectID, pipelineID, operator string) (int, error)

	SaveRequestToken(ctx context.Context, token *models.RequestToken) error
	GetDictionary(ctx context.Context, name string) (*models.Dictionary, error)
	PutDictionary(ctx context.Context, entry *models.Dictionary) error
}

var _ Store = (*database.GormDB)(nil)

// EventPublisher receives lifecycle events. Publish must not block.
type EventPublisher interface {
	Publish(event protocol.Event)
}

// BrokerResolver looks up the bootstrap brokers of a managed Kafka cluster.
type BrokerResolver interface {
	ResolveBrokers(ctx context.Context, region, clusterArn string) ([]string, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(protocol.Event) {}
