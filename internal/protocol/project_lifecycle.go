// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "fmt"

// ProjectLifecycleType defines the type of project lifecycle event
type ProjectLifecycleType string

const (
	ProjectCreated ProjectLifecycleType = "created"
	ProjectUpdated ProjectLifecycleType = "updated"
	ProjectDeleted ProjectLifecycleType = "deleted"
)

// ProjectLifecycleEvent reports a project mutation.
type ProjectLifecycleEvent struct {
	Metadata
	Type      ProjectLifecycleType `json:"type"`
	ProjectID string               `json:"projectId"`
	Name      string               `json:"name"`
}

func (e ProjectLifecycleEvent) GetMetadata() Metadata {
	return e.Metadata
}

// NewProjectEvent builds a project event.
func NewProjectEvent(eventType ProjectLifecycleType, projectID, name, operator string, timestamp int64) ProjectLifecycleEvent {
	return ProjectLifecycleEvent{
		Metadata: Metadata{
			IdempotencyKey: fmt.Sprintf("project:%s:%s:%d", projectID, eventType, timestamp),
			Version:        CurrentProtocolVersion,
			Operator:       operator,
			Timestamp:      timestamp,
		},
		Type:      eventType,
		ProjectID: projectID,
		Name:      name,
	}
}
