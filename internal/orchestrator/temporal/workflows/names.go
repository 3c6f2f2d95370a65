// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflows

// Workflow and activity names. Activities are invoked by name so workflows do
// not depend on the activity implementations.
const (
	StackWorkflowName    = "StackWorkflow"
	TeardownWorkflowName = "TeardownWorkflow"

	DeployStackActivityName              = "DeployStackActivity"
	DeleteStackActivityName              = "DeleteStackActivity"
	FinalizePipelineDeletionActivityName = "FinalizePipelineDeletionActivity"
)
