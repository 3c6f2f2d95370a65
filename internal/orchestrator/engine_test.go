// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
)

// recordingEngine stands in for the workflow engine. Every start succeeds and
// every execution reports status.
type recordingEngine struct {
	mu       sync.Mutex
	started  map[string][]string // workflow name -> workflow ids
	status   temporal.WorkflowStatus
	closeErr error
}

func newRecordingEngine(status temporal.WorkflowStatus) *recordingEngine {
	return &recordingEngine{started: map[string][]string{}, status: status}
}

func (e *recordingEngine) StartWorkflow(_ context.Context, workflowID string, workflow interface{}, _ ...interface{}) (client.WorkflowRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := fmt.Sprint(workflow)
	e.started[name] = append(e.started[name], workflowID)
	return nil, nil
}

func (e *recordingEngine) GetWorkflowStatus(context.Context, string) (temporal.WorkflowStatus, error) {
	return e.status, nil
}

func (e *recordingEngine) CancelWorkflow(context.Context, string) error { return nil }

func (e *recordingEngine) GetTaskQueue() string { return "test-queue" }

func (e *recordingEngine) Close() error { return e.closeErr }

func (e *recordingEngine) starts(workflow string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started[workflow]...)
}
