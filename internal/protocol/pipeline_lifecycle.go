// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"fmt"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// PipelineLifecycleType defines the type of pipeline lifecycle event
type PipelineLifecycleType string

const (
	// PipelineCreated - pipeline stored and provisioning workflow started
	PipelineCreated PipelineLifecycleType = "created"
	// PipelineUpdated - new version stored and update workflow started
	PipelineUpdated PipelineLifecycleType = "updated"
	// PipelineDeleting - teardown workflow started
	PipelineDeleting PipelineLifecycleType = "deleting"
	// PipelineDeleted - stacks removed and records soft deleted
	PipelineDeleted PipelineLifecycleType = "deleted"
	// PipelineStatusChanged - the poller observed a new workflow outcome
	PipelineStatusChanged PipelineLifecycleType = "status_changed"
	// PipelineFailed - the workflow could not be started
	PipelineFailed PipelineLifecycleType = "failed"
)

// PipelineLifecycleEvent reports a pipeline state change.
type PipelineLifecycleEvent struct {
	Metadata
	Type            PipelineLifecycleType `json:"type"`
	ProjectID       string                `json:"projectId"`
	PipelineID      string                `json:"pipelineId"`
	PipelineVersion string                `json:"pipelineVersion"`
	Status          models.PipelineStatus `json:"status"`
	PreviousStatus  models.PipelineStatus `json:"previousStatus,omitempty"`
	ExecutionArn    string                `json:"executionArn,omitempty"`
	Error           string                `json:"error,omitempty"`
}

func (e PipelineLifecycleEvent) GetMetadata() Metadata {
	return e.Metadata
}

// NewPipelineEvent builds a lifecycle event from the current pipeline record.
// The idempotency key is unique per pipeline version and event type.
func NewPipelineEvent(eventType PipelineLifecycleType, p *models.Pipeline, timestamp int64) PipelineLifecycleEvent {
	return PipelineLifecycleEvent{
		Metadata: Metadata{
			IdempotencyKey: fmt.Sprintf("pipeline:%s:%s:%s:%s", p.PipelineID, p.Version, eventType, p.Status),
			Version:        CurrentProtocolVersion,
			Operator:       p.Operator,
			Timestamp:      timestamp,
		},
		Type:            eventType,
		ProjectID:       p.ProjectID,
		PipelineID:      p.PipelineID,
		PipelineVersion: p.Version,
		Status:          p.Status,
		ExecutionArn:    p.ExecutionArn,
	}
}
