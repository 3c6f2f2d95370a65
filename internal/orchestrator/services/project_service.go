// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/protocol"
)

// ProjectService manages projects. Deleting a project tears down its pipeline
// through the PipelineService.
type ProjectService struct {
	store     Store
	pipelines *PipelineService
}

// NewProjectService creates a ProjectService sharing the guard, validator and
// event stream of pipelines.
func NewProjectService(store Store, pipelines *PipelineService) *ProjectService {
	return &ProjectService{store: store, pipelines: pipelines}
}

// List returns one page of projects ordered by creation time. Projects that
// lost track of their pipeline get it back from their latest pipeline record.
func (s *ProjectService) List(ctx context.Context, order string, pageNumber, pageSize int) (Page[*models.Project], error) {
	projects, err := s.store.ListProjects(ctx, order)
	if err != nil {
		return Page[*models.Project]{}, fmt.Errorf("failed to list projects: %w", err)
	}

	page := Paginate(projects, pageNumber, pageSize)
	for _, project := range lo.Filter(page.Items, func(p *models.Project, _ int) bool { return p.PipelineID == "" }) {
		latest, err := s.store.ListPipelines(ctx, project.ID, models.LatestVersionTag)
		if err != nil {
			return Page[*models.Project]{}, fmt.Errorf("failed to list pipelines of project %s: %w", project.ID, err)
		}
		if len(latest) == 0 {
			continue
		}
		project.PipelineID = latest[0].PipelineID
		if err := s.store.SetProjectPipeline(ctx, project.ID, project.PipelineID); err != nil {
			getServiceLog().Warn().Err(err).Str("project_id", project.ID).Msg("Failed to backfill project pipeline")
		}
	}
	return page, nil
}

// Create stores a new project and returns its id. A client supplied id is
// kept; otherwise one is generated.
func (s *ProjectService) Create(ctx context.Context, token, operator string, project *models.Project) (string, error) {
	ctx, span := startSpan(ctx, "ProjectService.Create")
	defer span.End()

	if err := s.pipelines.guard.ClaimOptional(ctx, OperationProjectCreate, token); err != nil {
		return "", err
	}

	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("project.id", project.ID))
	project.Operator = operator
	project.Deleted = false
	project.PipelineID = ""

	if err := s.store.CreateProject(ctx, project); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			verr := NewValidationError(LocationBody, "name", "Project name already exists.", project.Name)
			verr.Cause = err
			return "", verr
		}
		return "", fmt.Errorf("failed to create project: %w", err)
	}

	s.pipelines.events.Publish(protocol.NewProjectEvent(protocol.ProjectCreated, project.ID, project.Name, operator, project.CreateAt))
	getServiceLog().Info().Str("project_id", project.ID).Str("name", project.Name).Msg("Project created")
	return project.ID, nil
}

// Get returns a live project.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	if project == nil {
		getServiceLog().Warn().Str("project_id", projectID).Msg("Project not found")
		return nil, projectNotFound(projectID)
	}
	return project, nil
}

// Update writes the editable fields of a project.
func (s *ProjectService) Update(ctx context.Context, token, operator string, project *models.Project) error {
	if err := s.pipelines.guard.ClaimOptional(ctx, OperationProjectUpdate, token); err != nil {
		return err
	}
	if err := s.pipelines.validator.Check(ctx, ProjectRef(LocationParams, "id", project.ID)); err != nil {
		return err
	}

	project.Operator = operator
	if err := s.store.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return projectNotFound(project.ID)
		}
		return fmt.Errorf("failed to update project: %w", err)
	}

	s.pipelines.events.Publish(protocol.NewProjectEvent(protocol.ProjectUpdated, project.ID, project.Name, operator, s.pipelines.now().UnixMilli()))
	return nil
}

// Delete tears down the project's pipeline, when it has exactly one, and
// soft deletes the project.
func (s *ProjectService) Delete(ctx context.Context, token, operator, projectID string) error {
	ctx, span := startSpan(ctx, "ProjectService.Delete", attribute.String("project.id", projectID))
	defer span.End()

	if err := s.pipelines.guard.ClaimOptional(ctx, OperationProjectDelete, token); err != nil {
		return err
	}
	if err := s.pipelines.validator.Check(ctx, ProjectRef(LocationParams, "id", projectID)); err != nil {
		return err
	}

	latest, err := s.store.ListPipelines(ctx, projectID, models.LatestVersionTag)
	if err != nil {
		return fmt.Errorf("failed to list pipelines of project %s: %w", projectID, err)
	}
	if len(latest) == 1 {
		if err := s.pipelines.teardown(ctx, operator, projectID, latest[0].PipelineID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteProject(ctx, projectID, operator); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return projectNotFound(projectID)
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}

	s.pipelines.events.Publish(protocol.NewProjectEvent(protocol.ProjectDeleted, projectID, "", operator, s.pipelines.now().UnixMilli()))
	getServiceLog().Info().Str("project_id", projectID).Int("pipelines", len(latest)).Msg("Project deleted")
	return nil
}

// Verify reports whether a live project with projectID exists.
func (s *ProjectService) Verify(ctx context.Context, projectID string) (bool, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to verify project: %w", err)
	}
	return project != nil, nil
}
