// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// GetProjectID / GetPipelineID / GetStatus methods allow the API server's
// WebSocket filter to match events without maintaining an exhaustive type switch.

func (e PipelineLifecycleEvent) GetProjectID() string  { return e.ProjectID }
func (e PipelineLifecycleEvent) GetPipelineID() string { return e.PipelineID }
func (e PipelineLifecycleEvent) GetStatus() string     { return string(e.Status) }
func (e ProjectLifecycleEvent) GetProjectID() string   { return e.ProjectID }

// EventTypeName returns the wire name of an event for stream envelopes.
func EventTypeName(event Event) string {
	switch event.(type) {
	case PipelineLifecycleEvent, *PipelineLifecycleEvent:
		return "pipeline"
	case ProjectLifecycleEvent, *ProjectLifecycleEvent:
		return "project"
	default:
		return "unknown"
	}
}
