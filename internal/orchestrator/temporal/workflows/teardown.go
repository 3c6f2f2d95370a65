// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflows

import (
	"fmt"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/utils"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// TeardownWorkflow deletes every stack of a pipeline in plan order and,
// only when all deletions succeeded, drops the pipeline metadata. A failed
// deletion leaves the metadata in place so the pipeline can be retried.
func TeardownWorkflow(ctx workflow.Context, input types.TeardownWorkflowInput) (*types.StackWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting TeardownWorkflow",
		"projectID", input.ProjectID,
		"pipelineID", input.PipelineID,
		"stacks", len(input.Plan.Steps))

	output := &types.StackWorkflowOutput{Stacks: make([]types.StackActivityOutput, 0, len(input.Plan.Steps))}
	activityCtx := workflow.WithActivityOptions(ctx, utils.GetActivityOptions(input.Activity))

	for _, step := range input.Plan.Steps {
		var result types.StackActivityOutput
		err := workflow.ExecuteActivity(activityCtx, DeleteStackActivityName, types.StackActivityInput{
			ProjectID:    input.ProjectID,
			PipelineID:   input.PipelineID,
			Region:       input.Plan.Region,
			Step:         step,
			PollInterval: input.PollInterval,
		}).Get(ctx, &result)
		if err != nil {
			output.Error = fmt.Sprintf("failed to delete stack %s: %v", step.StackName, err)
			logger.Error("Teardown stopped", "stack", step.StackName, "error", err)
			return output, err
		}
		output.Stacks = append(output.Stacks, result)
	}

	// Metadata writes use short timeouts.
	finalizeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})
	err := workflow.ExecuteActivity(finalizeCtx, FinalizePipelineDeletionActivityName, types.FinalizeDeletionInput{
		ProjectID:  input.ProjectID,
		PipelineID: input.PipelineID,
		Operator:   input.Operator,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("failed to finalize deletion: %v", err)
		return output, err
	}

	output.Success = true
	logger.Info("TeardownWorkflow completed", "pipelineID", input.PipelineID)
	return output, nil
}
