// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package types holds the payloads exchanged between the control plane,
// workflows and activities.
package types

import (
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// ActivitySettings carries activity options into a workflow so workers do not
// need their own copy of the configuration.
type ActivitySettings struct {
	StartToCloseTimeout    time.Duration
	ScheduleToCloseTimeout time.Duration
	HeartbeatTimeout       time.Duration
	InitialInterval        time.Duration
	BackoffCoefficient     float64
	MaximumInterval        time.Duration
	MaximumAttempts        int32
}

// StackActivityInput asks an activity to deploy or delete one stack.
type StackActivityInput struct {
	ProjectID    string
	PipelineID   string
	Region       string
	Step         models.StackStep
	PollInterval time.Duration // How often the stack status is polled
}

// StackActivityOutput reports the final state of one stack.
type StackActivityOutput struct {
	StackName string
	StackID   string
	Status    string
	Reason    string
	Outputs   map[string]string
	NoChange  bool // Update found nothing to change
}

// FinalizeDeletionInput asks the control plane to drop the metadata of a torn
// down pipeline.
type FinalizeDeletionInput struct {
	ProjectID  string
	PipelineID string
	Operator   string
}
