// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package types

import (
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// StackWorkflowInput drives StackWorkflow through a provisioning plan.
type StackWorkflowInput struct {
	ProjectID         string
	PipelineID        string
	Version           string
	Operator          string
	Plan              models.StackPlan
	RollbackOnFailure bool // Delete stacks created by this run when a later step fails
	Activity          ActivitySettings
	PollInterval      time.Duration
}

// StackWorkflowOutput summarises a provisioning run.
type StackWorkflowOutput struct {
	Success bool
	Stacks  []StackActivityOutput
	Error   string
}

// TeardownWorkflowInput drives TeardownWorkflow. Plan is already reversed
// and carries Delete actions only.
type TeardownWorkflowInput struct {
	ProjectID    string
	PipelineID   string
	Version      string
	Operator     string
	Plan         models.StackPlan
	Activity     ActivitySettings
	PollInterval time.Duration
}
