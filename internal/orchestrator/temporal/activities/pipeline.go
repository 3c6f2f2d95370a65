// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
)

// PipelineFinalizer drops the metadata of a pipeline whose stacks are gone.
// Implementations must treat an already deleted pipeline as success.
type PipelineFinalizer interface {
	FinalizeDeletion(ctx context.Context, projectID, pipelineID, operator string) error
}

// PipelineActivities runs control plane bookkeeping at the end of workflows.
type PipelineActivities struct {
	finalizer PipelineFinalizer
}

// NewPipelineActivities creates a new instance of PipelineActivities
func NewPipelineActivities(finalizer PipelineFinalizer) *PipelineActivities {
	return &PipelineActivities{finalizer: finalizer}
}

// FinalizePipelineDeletionActivity soft deletes the pipeline records and
// clears the project's pipeline reference.
func (a *PipelineActivities) FinalizePipelineDeletionActivity(ctx context.Context, input types.FinalizeDeletionInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Finalizing pipeline deletion", "projectID", input.ProjectID, "pipelineID", input.PipelineID)

	if err := a.finalizer.FinalizeDeletion(ctx, input.ProjectID, input.PipelineID, input.Operator); err != nil {
		logger.Error("Failed to finalize pipeline deletion", "pipelineID", input.PipelineID, "error", err)
		return fmt.Errorf("failed to finalize deletion of pipeline %s: %w", input.PipelineID, err)
	}
	return nil
}
