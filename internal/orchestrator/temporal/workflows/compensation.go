// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflows

import (
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/utils"

	"go.temporal.io/sdk/workflow"
)

// stackRollback remembers the stacks a StackWorkflow run created so they can
// be deleted again, newest first, when a later step fails.
type stackRollback struct {
	input   types.StackWorkflowInput
	created []models.StackStep
}

func newStackRollback(input types.StackWorkflowInput) *stackRollback {
	return &stackRollback{input: input}
}

func (r *stackRollback) record(step models.StackStep) {
	r.created = append(r.created, step)
}

func (r *stackRollback) empty() bool { return len(r.created) == 0 }

// run deletes every recorded stack with a single attempt each. A failed
// delete does not stop the rest; the names of stacks left behind are
// returned.
func (r *stackRollback) run(ctx workflow.Context) []string {
	logger := workflow.GetLogger(ctx)
	opts := utils.GetActivityOptions(r.input.Activity)
	opts.RetryPolicy.MaximumAttempts = 1
	ctx = workflow.WithActivityOptions(ctx, opts)

	var leftover []string
	for i := len(r.created) - 1; i >= 0; i-- {
		step := r.created[i]
		step.Action = models.StackActionDelete
		err := workflow.ExecuteActivity(ctx, DeleteStackActivityName, types.StackActivityInput{
			ProjectID:    r.input.ProjectID,
			PipelineID:   r.input.PipelineID,
			Region:       r.input.Plan.Region,
			Step:         step,
			PollInterval: r.input.PollInterval,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("Rollback delete failed", "stack", step.StackName, "error", err)
			leftover = append(leftover, step.StackName)
			continue
		}
		logger.Info("Rolled back stack", "stack", step.StackName)
	}
	return leftover
}
