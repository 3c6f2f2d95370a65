// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/workflows"
)

func TestProjectService_CreateAndGet(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	id, err := f.projects.Create(ctx, "", testOperator, &models.Project{Name: "shop", Region: "us-east-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	project, err := f.projects.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "shop", project.Name)
	assert.Equal(t, testOperator, project.Operator)

	kept, err := f.projects.Create(ctx, "", testOperator, &models.Project{ID: "project_8888_8888", Name: "other"})
	require.NoError(t, err)
	assert.Equal(t, "project_8888_8888", kept)

	_, err = f.projects.Get(ctx, "missing")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Project not found", nf.Error())
}

func TestProjectService_CreateDuplicateName(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.projects.Create(ctx, "", testOperator, &models.Project{Name: "shop"})
	require.NoError(t, err)

	_, err = f.projects.Create(ctx, "", testOperator, &models.Project{Name: "shop"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Items[0].Param)
}

func TestProjectService_CreateReplayedToken(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.projects.Create(ctx, "token-1", testOperator, &models.Project{Name: "shop"})
	require.NoError(t, err)

	_, err = f.projects.Create(ctx, "token-1", testOperator, &models.Project{Name: "shop-2"})
	assert.ErrorIs(t, err, ErrRequestReplayed)
}

func TestProjectService_ListBackfillsPipelineID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createProject(t, "project_1")
	f.createProject(t, "project_2")
	stored := f.createPipeline(t, "project_1")
	require.NoError(t, f.store.SetProjectPipeline(ctx, "project_1", ""))

	page, err := f.projects.List(ctx, "asc", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)

	byID := map[string]*models.Project{}
	for _, p := range page.Items {
		byID[p.ID] = p
	}
	assert.Equal(t, stored.PipelineID, byID["project_1"].PipelineID)
	assert.Empty(t, byID["project_2"].PipelineID)

	persisted, err := f.store.GetProject(ctx, "project_1")
	require.NoError(t, err)
	assert.Equal(t, stored.PipelineID, persisted.PipelineID)
}

func TestProjectService_Update(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createProject(t, "project_8888_8888")

	err := f.projects.Update(ctx, "", testOperator, &models.Project{ID: "project_8888_8888", Name: "renamed", Emails: "a@example.com"})
	require.NoError(t, err)

	project, err := f.store.GetProject(ctx, "project_8888_8888")
	require.NoError(t, err)
	assert.Equal(t, "renamed", project.Name)
	assert.Equal(t, testOperator, project.Operator)

	err = f.projects.Update(ctx, "", testOperator, &models.Project{ID: "missing", Name: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, LocationParams, verr.Items[0].Location)
}

func TestProjectService_DeleteTearsDownPipeline(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createProject(t, "project_8888_8888")
	stored := f.createPipeline(t, "project_8888_8888")
	f.clock = f.clock.Add(time.Minute)
	f.temporal.On("GetWorkflowStatus", mock.Anything, stored.ExecutionArn).Return(temporal.WorkflowStatusCompleted, nil)
	f.expectStart(workflows.TeardownWorkflowName, nil).Once()

	require.NoError(t, f.projects.Delete(ctx, "", testOperator, "project_8888_8888"))
	f.temporal.AssertCalled(t, "StartWorkflow", mock.Anything, mock.Anything, workflows.TeardownWorkflowName, mock.Anything)

	exists, err := f.projects.Verify(ctx, "project_8888_8888")
	require.NoError(t, err)
	assert.False(t, exists)

	err = f.projects.Delete(ctx, "", testOperator, "project_8888_8888")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestProjectService_DeleteWithoutPipeline(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.createProject(t, "project_8888_8888")

	exists, err := f.projects.Verify(ctx, "project_8888_8888")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, f.projects.Delete(ctx, "", testOperator, "project_8888_8888"))
	f.temporal.AssertNotCalled(t, "StartWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
