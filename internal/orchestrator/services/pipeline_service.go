// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/utils"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/workflows"
	"github.com/noldarim/clickstream/internal/protocol"
	"github.com/noldarim/clickstream/internal/telemetry"
)

var (
	serviceLog     *zerolog.Logger
	serviceLogOnce sync.Once
)

func getServiceLog() *zerolog.Logger {
	serviceLogOnce.Do(func() {
		l := logger.GetOrchestratorLogger().With().Str("component", "pipeline_service").Logger()
		serviceLog = &l
	})
	return serviceLog
}

// PipelineService owns the pipeline lifecycle: it validates requests against
// the record store, persists versioned records and triggers the provisioning
// workflows. The HTTP handlers and the teardown activity call it directly.
type PipelineService struct {
	store     Store
	temporal  TemporalClient
	guard     *IdempotencyGuard
	validator *ResourceValidator
	plans     *PlanBuilder
	poller    *StatusPoller
	events    EventPublisher
	metrics   *telemetry.Metrics
	config    *config.AppConfig
	now       func() time.Time
}

// PipelineOption customises a PipelineService.
type PipelineOption func(*PipelineService)

// WithBrokerResolver enables MSK broker lookups for kafka sinks.
func WithBrokerResolver(resolver BrokerResolver) PipelineOption {
	return func(ps *PipelineService) {
		ps.plans = NewPlanBuilder(ps.config.Workflow.StackPrefix, resolver)
	}
}

// WithEventPublisher sends lifecycle events to publisher.
func WithEventPublisher(publisher EventPublisher) PipelineOption {
	return func(ps *PipelineService) {
		ps.events = publisher
	}
}

// WithMetrics records operation outcomes in metrics.
func WithMetrics(metrics *telemetry.Metrics) PipelineOption {
	return func(ps *PipelineService) {
		ps.metrics = metrics
	}
}

// WithClock replaces the wall clock used for version stamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(ps *PipelineService) {
		ps.now = now
	}
}

// NewPipelineService creates a PipelineService with its dependencies.
func NewPipelineService(store Store, temporal TemporalClient, cfg *config.AppConfig, opts ...PipelineOption) *PipelineService {
	ps := &PipelineService{
		store:     store,
		temporal:  temporal,
		guard:     NewIdempotencyGuard(store, cfg.Workflow.TokenRetention),
		validator: NewResourceValidator(store),
		events:    nopPublisher{},
		config:    cfg,
		now:       time.Now,
	}
	ps.plans = NewPlanBuilder(cfg.Workflow.StackPrefix, nil)
	for _, opt := range opts {
		opt(ps)
	}
	ps.poller = NewStatusPoller(store, temporal, cfg.Workflow.StatusRefreshLimit,
		WithPollerEvents(ps.events), WithPollerMetrics(ps.metrics))
	return ps
}

// Validator returns the resource validator shared with the project service.
func (ps *PipelineService) Validator() *ResourceValidator {
	return ps.validator
}

// Poller returns the workflow status poller used on read paths.
func (ps *PipelineService) Poller() *StatusPoller {
	return ps.poller
}

// Create provisions a new pipeline for its project. The request token must be
// present; it is claimed before anything else happens.
func (ps *PipelineService) Create(ctx context.Context, token, operator string, pipeline *models.Pipeline) (id string, err error) {
	ctx, span := startSpan(ctx, "PipelineService.Create", attribute.String("project.id", pipeline.ProjectID))
	defer func() {
		ps.metrics.PipelineOperation("create", outcomeOf(err))
		endSpan(span, err)
	}()

	if err := ps.prepare(pipeline); err != nil {
		return "", err
	}
	if err := ps.guard.Claim(ctx, OperationPipelineCreate, token); err != nil {
		return "", err
	}
	if err := ps.validator.Check(ctx, ProjectRef(LocationBody, "projectId", pipeline.ProjectID)); err != nil {
		return "", err
	}

	existing, err := ps.store.ListPipelines(ctx, pipeline.ProjectID, models.LatestVersionTag)
	if err != nil {
		return "", fmt.Errorf("failed to list pipelines of project %s: %w", pipeline.ProjectID, err)
	}
	if len(existing) > 0 {
		verr := NewValidationError(LocationBody, "projectId", "Project already has an active pipeline.", pipeline.ProjectID)
		verr.Cause = ErrActivePipelineExists
		return "", verr
	}

	templates, err := LoadTemplates(ctx, ps.store)
	if err != nil {
		return "", err
	}

	pipeline.PipelineID = uuid.NewString()
	span.SetAttributes(attribute.String("pipeline.id", pipeline.PipelineID))

	plan, err := ps.plans.Build(ctx, pipeline, templates)
	if err != nil {
		return "", err
	}

	now := ps.now()
	pipeline.Version = nextVersion(now, "")
	pipeline.Status = models.PipelineStatusCreating
	pipeline.Workflow = datatypes.NewJSONType(plan)
	pipeline.ExecutionArn = utils.StackWorkflowID(ps.config.Workflow.StackPrefix, pipeline.PipelineID, pipeline.Version)
	pipeline.Operator = operator
	pipeline.Deleted = false
	pipeline.CreateAt = now.UnixMilli()
	pipeline.UpdateAt = now.UnixMilli()

	if err := ps.store.CreatePipeline(ctx, pipeline); err != nil {
		return "", fmt.Errorf("failed to create pipeline: %w", err)
	}

	input := types.StackWorkflowInput{
		ProjectID:         pipeline.ProjectID,
		PipelineID:        pipeline.PipelineID,
		Version:           pipeline.Version,
		Operator:          operator,
		Plan:              *plan,
		RollbackOnFailure: true,
		Activity:          utils.ActivitySettingsFromConfig(ps.config),
		PollInterval:      ps.config.Workflow.StackPollInterval,
	}
	if err := ps.startWorkflow(ctx, pipeline.ExecutionArn, workflows.StackWorkflowName, input); err != nil {
		ps.markFailed(ctx, pipeline, err)
		return "", err
	}

	if err := ps.store.SetProjectPipeline(ctx, pipeline.ProjectID, pipeline.PipelineID); err != nil {
		return "", fmt.Errorf("failed to link pipeline to project: %w", err)
	}

	ps.events.Publish(protocol.NewPipelineEvent(protocol.PipelineCreated, pipeline, now.UnixMilli()))
	getServiceLog().Info().
		Str("project_id", pipeline.ProjectID).
		Str("pipeline_id", pipeline.PipelineID).
		Str("version", pipeline.Version).
		Str("workflow_id", pipeline.ExecutionArn).
		Int("stacks", len(plan.Steps)).
		Msg("Pipeline created")
	return pipeline.PipelineID, nil
}

// Update replaces the configuration of a pipeline. The caller must present
// the stored version. Only stacks whose template or parameters changed are
// submitted to the workflow, except after a failed run, when every stack is.
func (ps *PipelineService) Update(ctx context.Context, token, operator string, pipeline *models.Pipeline) (err error) {
	ctx, span := startSpan(ctx, "PipelineService.Update",
		attribute.String("project.id", pipeline.ProjectID),
		attribute.String("pipeline.id", pipeline.PipelineID))
	defer func() {
		ps.metrics.PipelineOperation("update", outcomeOf(err))
		endSpan(span, err)
	}()

	if err := ps.prepare(pipeline); err != nil {
		return err
	}
	if err := ps.guard.ClaimOptional(ctx, OperationPipelineUpdate, token); err != nil {
		return err
	}
	if err := ps.validator.Check(ctx, ProjectRef(LocationBody, "projectId", pipeline.ProjectID)); err != nil {
		return err
	}

	current, err := ps.store.GetPipeline(ctx, pipeline.ProjectID, pipeline.PipelineID)
	if err != nil {
		return fmt.Errorf("failed to get pipeline: %w", err)
	}
	if current == nil {
		return &NotFoundError{Resource: "pipeline", ID: pipeline.PipelineID, Message: "Pipeline resource does not exist."}
	}
	if current.Version != pipeline.Version {
		return fmt.Errorf("%w: pipeline %s is at version %s", ErrConcurrentModification, current.PipelineID, current.Version)
	}

	current = ps.poller.Refresh(ctx, current)
	if current.Status.InProgress() {
		return fmt.Errorf("%w: status %s", ErrPipelineInProgress, current.Status)
	}

	templates, err := LoadTemplates(ctx, ps.store)
	if err != nil {
		return err
	}
	plan, err := ps.plans.Build(ctx, pipeline, templates)
	if err != nil {
		return err
	}
	diff := DiffPlan(current.Workflow.Data(), plan)
	if current.Status == models.PipelineStatusFailed {
		diff = RedeployPlan(current.Workflow.Data(), plan)
	}

	now := ps.now()
	next := *pipeline
	next.Prefix = current.Prefix
	next.Version = nextVersion(now, current.Version)
	next.Status = models.PipelineStatusUpdating
	next.Workflow = datatypes.NewJSONType(plan)
	next.ExecutionArn = utils.StackWorkflowID(ps.config.Workflow.StackPrefix, current.PipelineID, next.Version)
	next.Operator = operator
	next.Deleted = false
	next.CreateAt = current.CreateAt
	next.UpdateAt = now.UnixMilli()

	if err := ps.store.ConditionalWritePipeline(ctx, current.Version, &next); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return &NotFoundError{Resource: "pipeline", ID: pipeline.PipelineID, Message: "Pipeline resource does not exist."}
		}
		return err
	}

	input := types.StackWorkflowInput{
		ProjectID:    next.ProjectID,
		PipelineID:   next.PipelineID,
		Version:      next.Version,
		Operator:     operator,
		Plan:         *diff,
		Activity:     utils.ActivitySettingsFromConfig(ps.config),
		PollInterval: ps.config.Workflow.StackPollInterval,
	}
	if err := ps.startWorkflow(ctx, next.ExecutionArn, workflows.StackWorkflowName, input); err != nil {
		ps.markFailed(ctx, &next, err)
		return err
	}

	ps.events.Publish(protocol.NewPipelineEvent(protocol.PipelineUpdated, &next, now.UnixMilli()))
	getServiceLog().Info().
		Str("project_id", next.ProjectID).
		Str("pipeline_id", next.PipelineID).
		Str("previous_version", current.Version).
		Str("version", next.Version).
		Int("changed_stacks", len(diff.Steps)).
		Bool("redeploy", current.Status == models.PipelineStatusFailed).
		Msg("Pipeline updated")
	return nil
}

// Delete starts the teardown of a pipeline. The teardown workflow is started
// first; the record moves to Deleting only once the workflow is accepted.
// Records are soft deleted by FinalizeDeletion after the stacks are gone.
func (ps *PipelineService) Delete(ctx context.Context, token, operator, projectID, pipelineID string) (err error) {
	ctx, span := startSpan(ctx, "PipelineService.Delete",
		attribute.String("project.id", projectID),
		attribute.String("pipeline.id", pipelineID))
	defer func() {
		ps.metrics.PipelineOperation("delete", outcomeOf(err))
		endSpan(span, err)
	}()

	if err := ps.guard.ClaimOptional(ctx, OperationPipelineDelete, token); err != nil {
		return err
	}
	if err := ps.validator.Check(ctx,
		ProjectRef(LocationQuery, "pid", projectID),
		PipelineRef(LocationParams, "id", projectID, pipelineID),
	); err != nil {
		return err
	}

	return ps.teardown(ctx, operator, projectID, pipelineID)
}

func (ps *PipelineService) teardown(ctx context.Context, operator, projectID, pipelineID string) error {
	current, err := ps.store.GetPipeline(ctx, projectID, pipelineID)
	if err != nil {
		return fmt.Errorf("failed to get pipeline: %w", err)
	}
	if current == nil {
		return NewValidationError(LocationParams, "id", "Pipeline resource does not exist.", pipelineID)
	}

	current = ps.poller.Refresh(ctx, current)
	if current.Status.InProgress() {
		return fmt.Errorf("%w: status %s", ErrPipelineInProgress, current.Status)
	}

	now := ps.now()
	next := *current
	next.Version = nextVersion(now, current.Version)
	next.Status = models.PipelineStatusDeleting
	next.ExecutionArn = utils.StackWorkflowID(ps.config.Workflow.StackPrefix, current.PipelineID, next.Version)
	next.Operator = operator
	next.UpdateAt = now.UnixMilli()

	input := types.TeardownWorkflowInput{
		ProjectID:    current.ProjectID,
		PipelineID:   current.PipelineID,
		Version:      next.Version,
		Operator:     operator,
		Plan:         *TeardownPlan(current.Workflow.Data()),
		Activity:     utils.ActivitySettingsFromConfig(ps.config),
		PollInterval: ps.config.Workflow.StackPollInterval,
	}
	if err := ps.startWorkflow(ctx, next.ExecutionArn, workflows.TeardownWorkflowName, input); err != nil {
		return err
	}

	if err := ps.store.ConditionalWritePipeline(ctx, current.Version, &next); err != nil {
		if cancelErr := ps.temporal.CancelWorkflow(ctx, next.ExecutionArn); cancelErr != nil {
			getServiceLog().Error().Err(cancelErr).Str("workflow_id", next.ExecutionArn).
				Msg("Failed to cancel teardown after metadata write failed")
		}
		return err
	}

	ps.events.Publish(protocol.NewPipelineEvent(protocol.PipelineDeleting, &next, now.UnixMilli()))
	getServiceLog().Info().
		Str("project_id", next.ProjectID).
		Str("pipeline_id", next.PipelineID).
		Str("workflow_id", next.ExecutionArn).
		Int("stacks", len(input.Plan.Steps)).
		Msg("Pipeline teardown started")
	return nil
}

// FinalizeDeletion soft deletes every record of a pipeline whose stacks are
// gone and unlinks it from its project. Running it twice is harmless.
func (ps *PipelineService) FinalizeDeletion(ctx context.Context, projectID, pipelineID, operator string) error {
	marked, err := ps.store.DeletePipeline(ctx, projectID, pipelineID, operator)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to delete pipeline records: %w", err)
	}

	project, err := ps.store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to get project: %w", err)
	}
	if project != nil && project.PipelineID == pipelineID {
		if err := ps.store.SetProjectPipeline(ctx, projectID, ""); err != nil {
			return fmt.Errorf("failed to unlink pipeline from project: %w", err)
		}
	}

	if marked > 0 {
		now := ps.now().UnixMilli()
		ps.events.Publish(protocol.NewPipelineEvent(protocol.PipelineDeleted, &models.Pipeline{
			ProjectID:  projectID,
			PipelineID: pipelineID,
			Status:     models.PipelineStatusDeleted,
			Operator:   operator,
		}, now))
	}
	getServiceLog().Info().
		Str("project_id", projectID).
		Str("pipeline_id", pipelineID).
		Int("records", marked).
		Msg("Pipeline records deleted")
	return nil
}

// Get returns the live record of a pipeline with its status refreshed from
// the workflow engine.
func (ps *PipelineService) Get(ctx context.Context, projectID, pipelineID string) (*models.Pipeline, error) {
	ctx, span := startSpan(ctx, "PipelineService.Get",
		attribute.String("project.id", projectID),
		attribute.String("pipeline.id", pipelineID))
	defer span.End()

	if err := ps.validator.Check(ctx, ProjectRef(LocationQuery, "pid", projectID)); err != nil {
		return nil, err
	}

	pipeline, err := ps.store.GetPipeline(ctx, projectID, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}
	if pipeline == nil {
		return nil, pipelineNotFound(pipelineID)
	}
	return ps.poller.Refresh(ctx, pipeline), nil
}

// List returns one page of pipelines carrying versionTag ("latest" when
// empty). An empty projectID lists across every project.
func (ps *PipelineService) List(ctx context.Context, projectID, versionTag string, pageNumber, pageSize int) (Page[*models.Pipeline], error) {
	ctx, span := startSpan(ctx, "PipelineService.List", attribute.String("project.id", projectID))
	defer span.End()

	if projectID != "" {
		if err := ps.validator.Check(ctx, ProjectRef(LocationQuery, "pid", projectID)); err != nil {
			return Page[*models.Pipeline]{}, err
		}
	}

	pipelines, err := ps.store.ListPipelines(ctx, projectID, versionTag)
	if err != nil {
		return Page[*models.Pipeline]{}, fmt.Errorf("failed to list pipelines: %w", err)
	}

	page := Paginate(pipelines, pageNumber, pageSize)
	ps.poller.RefreshAll(ctx, page.Items)
	return page, nil
}

func (ps *PipelineService) startWorkflow(ctx context.Context, workflowID, workflowName string, input interface{}) error {
	_, err := ps.temporal.StartWorkflow(ctx, workflowID, workflowName, input)
	ps.metrics.WorkflowStart(workflowName, err)
	if err != nil {
		getServiceLog().Error().Err(err).
			Str("workflow", workflowName).
			Str("workflow_id", workflowID).
			Msg("Failed to start workflow")
		return fmt.Errorf("failed to start %s: %w", workflowName, err)
	}
	return nil
}

// markFailed records that the workflow for pipeline never started.
func (ps *PipelineService) markFailed(ctx context.Context, pipeline *models.Pipeline, cause error) {
	if err := ps.store.UpdatePipelineStatus(ctx, pipeline.ProjectID, pipeline.PipelineID, pipeline.Version, models.PipelineStatusFailed); err != nil {
		getServiceLog().Error().Err(err).Str("pipeline_id", pipeline.PipelineID).Msg("Failed to mark pipeline as failed")
		return
	}

	previous := pipeline.Status
	pipeline.Status = models.PipelineStatusFailed
	event := protocol.NewPipelineEvent(protocol.PipelineFailed, pipeline, ps.now().UnixMilli())
	event.PreviousStatus = previous
	event.Error = cause.Error()
	ps.events.Publish(event)
}

// nextVersion returns a version stamp in epoch milliseconds that is strictly
// greater than previous.
// prepare applies the configuration rules every entry point shares: only the
// selected sink is kept and a given region must be supported.
func (ps *PipelineService) prepare(pipeline *models.Pipeline) error {
	pipeline.NormalizeSinks()
	if pipeline.Region != "" && !ps.config.Workflow.IsSupportedRegion(pipeline.Region) {
		return NewValidationError(LocationBody, "region", "Region is not supported.", pipeline.Region)
	}
	return nil
}

func nextVersion(now time.Time, previous string) string {
	version := now.UnixMilli()
	if prev, err := strconv.ParseInt(previous, 10, 64); err == nil && version <= prev {
		version = prev + 1
	}
	return strconv.FormatInt(version, 10)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// outcomeOf classifies err for the operation metrics.
func outcomeOf(err error) string {
	var verr *ValidationError
	var nferr *NotFoundError
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, ErrConcurrentModification):
		return telemetry.OutcomeConflict
	case errors.As(err, &verr), errors.As(err, &nferr),
		errors.Is(err, ErrRequestReplayed), errors.Is(err, ErrPipelineInProgress):
		return telemetry.OutcomeRejected
	default:
		return telemetry.OutcomeError
	}
}
