// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func deployStackStub(context.Context, types.StackActivityInput) (*types.StackActivityOutput, error) {
	return nil, nil
}

func deleteStackStub(context.Context, types.StackActivityInput) (*types.StackActivityOutput, error) {
	return nil, nil
}

func finalizeStub(context.Context, types.FinalizeDeletionInput) error {
	return nil
}

func newStackTestEnv(s *testsuite.WorkflowTestSuite) *testsuite.TestWorkflowEnvironment {
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivityWithOptions(deployStackStub, activity.RegisterOptions{Name: DeployStackActivityName})
	env.RegisterActivityWithOptions(deleteStackStub, activity.RegisterOptions{Name: DeleteStackActivityName})
	env.RegisterActivityWithOptions(finalizeStub, activity.RegisterOptions{Name: FinalizePipelineDeletionActivityName})
	return env
}

func testPlan(actions ...models.StackAction) models.StackPlan {
	kinds := []models.StackKind{models.StackKindIngestion, models.StackKindETL, models.StackKindDataModeling}
	plan := models.StackPlan{Region: "us-east-1"}
	for i, action := range actions {
		plan.Steps = append(plan.Steps, models.StackStep{
			Kind:      kinds[i],
			StackName: "clickstream-" + string(kinds[i]) + "-p1",
			Action:    action,
		})
	}
	return plan
}

func testInput(plan models.StackPlan, rollback bool) types.StackWorkflowInput {
	return types.StackWorkflowInput{
		ProjectID:         "proj",
		PipelineID:        "p1",
		Version:           "1700000000000",
		Plan:              plan,
		RollbackOnFailure: rollback,
		Activity: types.ActivitySettings{
			StartToCloseTimeout: time.Minute,
			MaximumAttempts:     1,
		},
	}
}

func TestStackWorkflow_RunsStepsInOrder(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := newStackTestEnv(testSuite)

	var order []string
	record := func(_ context.Context, in types.StackActivityInput) (*types.StackActivityOutput, error) {
		order = append(order, string(in.Step.Action)+":"+in.Step.StackName)
		return &types.StackActivityOutput{StackName: in.Step.StackName, Status: "DONE"}, nil
	}
	env.OnActivity(DeployStackActivityName, mock.Anything, mock.Anything).Return(record)
	env.OnActivity(DeleteStackActivityName, mock.Anything, mock.Anything).Return(record)

	plan := testPlan(models.StackActionUpdate, models.StackActionCreate, models.StackActionDelete)
	env.ExecuteWorkflow(StackWorkflow, testInput(plan, true))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out types.StackWorkflowOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Success)
	assert.Len(t, out.Stacks, 3)
	assert.Equal(t, []string{
		"Update:clickstream-Ingestion-p1",
		"Create:clickstream-ETL-p1",
		"Delete:clickstream-DataModeling-p1",
	}, order)
}

func TestStackWorkflow_RollsBackCreatedStacks(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := newStackTestEnv(testSuite)

	var deleted []string
	env.OnActivity(DeployStackActivityName, mock.Anything, mock.MatchedBy(func(in types.StackActivityInput) bool {
		return in.Step.Kind != models.StackKindDataModeling
	})).Return(&types.StackActivityOutput{Status: "CREATE_COMPLETE"}, nil)
	env.OnActivity(DeployStackActivityName, mock.Anything, mock.MatchedBy(func(in types.StackActivityInput) bool {
		return in.Step.Kind == models.StackKindDataModeling
	})).Return(nil, errors.New("stack ended in ROLLBACK_COMPLETE"))
	env.OnActivity(DeleteStackActivityName, mock.Anything, mock.Anything).Return(
		func(_ context.Context, in types.StackActivityInput) (*types.StackActivityOutput, error) {
			deleted = append(deleted, in.Step.StackName)
			return &types.StackActivityOutput{Status: "DELETE_COMPLETE"}, nil
		})

	plan := testPlan(models.StackActionCreate, models.StackActionCreate, models.StackActionCreate)
	env.ExecuteWorkflow(StackWorkflow, testInput(plan, true))

	require.True(t, env.IsWorkflowCompleted())
	workflowErr := env.GetWorkflowError()
	require.Error(t, workflowErr)
	assert.Contains(t, workflowErr.Error(), "ROLLBACK_COMPLETE")
	assert.Equal(t, []string{"clickstream-ETL-p1", "clickstream-Ingestion-p1"}, deleted)
}

func TestStackWorkflow_NoRollbackKeepsStacks(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := newStackTestEnv(testSuite)

	env.OnActivity(DeployStackActivityName, mock.Anything, mock.MatchedBy(func(in types.StackActivityInput) bool {
		return in.Step.Kind == models.StackKindIngestion
	})).Return(&types.StackActivityOutput{Status: "UPDATE_COMPLETE"}, nil)
	env.OnActivity(DeployStackActivityName, mock.Anything, mock.MatchedBy(func(in types.StackActivityInput) bool {
		return in.Step.Kind == models.StackKindETL
	})).Return(nil, errors.New("access denied"))

	plan := testPlan(models.StackActionCreate, models.StackActionCreate)
	env.ExecuteWorkflow(StackWorkflow, testInput(plan, false))

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, DeleteStackActivityName, mock.Anything, mock.Anything)
}

func TestStackWorkflow_RejectsUnknownAction(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := newStackTestEnv(testSuite)

	plan := testPlan(models.StackAction("Replace"))
	env.ExecuteWorkflow(StackWorkflow, testInput(plan, false))

	require.True(t, env.IsWorkflowCompleted())
	workflowErr := env.GetWorkflowError()
	require.Error(t, workflowErr)
	assert.Contains(t, workflowErr.Error(), "unknown stack action")
}

func TestStackWorkflow_EmptyPlan(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := newStackTestEnv(testSuite)

	env.ExecuteWorkflow(StackWorkflow, testInput(models.StackPlan{Region: "us-east-1"}, false))

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out types.StackWorkflowOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.True(t, out.Success)
	assert.Empty(t, out.Stacks)
}
