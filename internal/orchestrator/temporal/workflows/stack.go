// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflows

import (
	"fmt"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/utils"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// StackWorkflow executes a provisioning plan one stack at a time, in plan
// order. Create and Update steps deploy the stack, Delete steps remove it.
//
// When RollbackOnFailure is set, stacks created by this run are deleted again
// if a later step fails. Stacks that existed before the run are left as they
// are.
func StackWorkflow(ctx workflow.Context, input types.StackWorkflowInput) (*types.StackWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting StackWorkflow",
		"projectID", input.ProjectID,
		"pipelineID", input.PipelineID,
		"version", input.Version,
		"steps", len(input.Plan.Steps))

	output := &types.StackWorkflowOutput{Stacks: make([]types.StackActivityOutput, 0, len(input.Plan.Steps))}
	activityCtx := workflow.WithActivityOptions(ctx, utils.GetActivityOptions(input.Activity))

	rollback := newStackRollback(input)
	for i, step := range input.Plan.Steps {
		logger.Info("Executing stack step", "index", i, "stack", step.StackName, "action", step.Action)

		result, err := executeStackStep(activityCtx, input, step)
		if err != nil {
			output.Error = fmt.Sprintf("stack %s (%s) failed: %v", step.StackName, step.Action, err)
			logger.Error("Stack step failed", "stack", step.StackName, "error", err)

			if input.RollbackOnFailure && !rollback.empty() {
				// Disconnected so the deletes still run when the workflow was canceled.
				cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
				if leftover := rollback.run(cleanupCtx); len(leftover) > 0 {
					logger.Warn("Rollback left stacks behind", "stacks", leftover)
				}
			}
			return output, err
		}

		output.Stacks = append(output.Stacks, *result)
		if step.Action == models.StackActionCreate && !result.NoChange {
			rollback.record(step)
		}
	}

	output.Success = true
	logger.Info("StackWorkflow completed", "pipelineID", input.PipelineID, "stacks", len(output.Stacks))
	return output, nil
}

func executeStackStep(ctx workflow.Context, input types.StackWorkflowInput, step models.StackStep) (*types.StackActivityOutput, error) {
	activityInput := types.StackActivityInput{
		ProjectID:    input.ProjectID,
		PipelineID:   input.PipelineID,
		Region:       input.Plan.Region,
		Step:         step,
		PollInterval: input.PollInterval,
	}

	var name string
	switch step.Action {
	case models.StackActionCreate, models.StackActionUpdate:
		name = DeployStackActivityName
	case models.StackActionDelete:
		name = DeleteStackActivityName
	default:
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown stack action %q for %s", step.Action, step.StackName), "InvalidStackAction", nil)
	}

	var result types.StackActivityOutput
	if err := workflow.ExecuteActivity(ctx, name, activityInput).Get(ctx, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
