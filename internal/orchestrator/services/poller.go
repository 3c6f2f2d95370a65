// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/protocol"
	"github.com/noldarim/clickstream/internal/telemetry"
)

const defaultRefreshLimit = 8

var (
	pollerLog     *zerolog.Logger
	pollerLogOnce sync.Once
)

func getPollerLog() *zerolog.Logger {
	pollerLogOnce.Do(func() {
		l := logger.GetPollerLogger().With().Str("component", "status_poller").Logger()
		pollerLog = &l
	})
	return pollerLog
}

// StatusPoller reconciles pipeline statuses with the workflow engine on read.
// Lookups fail open: when the engine cannot answer, the stored status stands.
type StatusPoller struct {
	store    Store
	temporal TemporalClient
	events   EventPublisher
	metrics  *telemetry.Metrics
	limit    int
	now      func() time.Time
}

// PollerOption customises a StatusPoller.
type PollerOption func(*StatusPoller)

// WithPollerEvents publishes a status_changed event for every write-back.
func WithPollerEvents(publisher EventPublisher) PollerOption {
	return func(p *StatusPoller) {
		if publisher != nil {
			p.events = publisher
		}
	}
}

// WithPollerMetrics counts refresh results.
func WithPollerMetrics(metrics *telemetry.Metrics) PollerOption {
	return func(p *StatusPoller) {
		p.metrics = metrics
	}
}

// NewStatusPoller creates a poller issuing at most limit concurrent lookups
// per RefreshAll.
func NewStatusPoller(store Store, temporal TemporalClient, limit int, opts ...PollerOption) *StatusPoller {
	if limit <= 0 {
		limit = defaultRefreshLimit
	}
	p := &StatusPoller{
		store:    store,
		temporal: temporal,
		events:   nopPublisher{},
		limit:    limit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MapWorkflowStatus derives the pipeline status from the state of its latest
// workflow execution.
func MapWorkflowStatus(current models.PipelineStatus, status temporal.WorkflowStatus) models.PipelineStatus {
	switch status {
	case temporal.WorkflowStatusRunning:
		return current
	case temporal.WorkflowStatusCompleted:
		if current == models.PipelineStatusDeleting {
			return models.PipelineStatusDeleted
		}
		return models.PipelineStatusActive
	case temporal.WorkflowStatusFailed, temporal.WorkflowStatusCanceled,
		temporal.WorkflowStatusTerminated, temporal.WorkflowStatusTimedOut:
		return models.PipelineStatusFailed
	default:
		return current
	}
}

// Refresh updates pipeline.Status from the workflow engine and returns the
// same pointer. A changed status of the live record is written back with a
// version-conditional update; write-back errors are only logged.
func (p *StatusPoller) Refresh(ctx context.Context, pipeline *models.Pipeline) *models.Pipeline {
	if pipeline == nil || pipeline.ExecutionArn == "" {
		return pipeline
	}

	status, err := p.temporal.GetWorkflowStatus(ctx, pipeline.ExecutionArn)
	if err != nil {
		p.metrics.StatusRefresh("error")
		getPollerLog().Warn().Err(err).
			Str("pipeline_id", pipeline.PipelineID).
			Str("workflow_id", pipeline.ExecutionArn).
			Msg("Workflow status lookup failed, keeping stored status")
		return pipeline
	}

	next := MapWorkflowStatus(pipeline.Status, status)
	if next == pipeline.Status {
		p.metrics.StatusRefresh("unchanged")
		return pipeline
	}
	p.metrics.StatusRefresh("changed")

	previous := pipeline.Status
	pipeline.Status = next
	if !pipeline.IsLatest() {
		return pipeline
	}

	err = p.store.UpdatePipelineStatus(ctx, pipeline.ProjectID, pipeline.PipelineID, pipeline.Version, next)
	switch {
	case errors.Is(err, database.ErrConcurrentModification):
		getPollerLog().Debug().Str("pipeline_id", pipeline.PipelineID).Str("version", pipeline.Version).
			Msg("Pipeline moved on before status write-back")
		return pipeline
	case err != nil:
		getPollerLog().Error().Err(err).Str("pipeline_id", pipeline.PipelineID).Msg("Failed to write back pipeline status")
		return pipeline
	}

	event := protocol.NewPipelineEvent(protocol.PipelineStatusChanged, pipeline, p.now().UnixMilli())
	event.PreviousStatus = previous
	p.events.Publish(event)

	getPollerLog().Info().
		Str("pipeline_id", pipeline.PipelineID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Str("workflow_status", status.String()).
		Bool("terminal", status.Terminal()).
		Msg("Pipeline status refreshed")
	return pipeline
}

// RefreshAll refreshes every pipeline in place, running at most the
// configured number of lookups at once.
func (p *StatusPoller) RefreshAll(ctx context.Context, pipelines []*models.Pipeline) {
	var g errgroup.Group
	g.SetLimit(p.limit)
	for _, pipeline := range pipelines {
		pipeline := pipeline
		g.Go(func() error {
			p.Refresh(ctx, pipeline)
			return nil
		})
	}
	_ = g.Wait()
}
