// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/protocol"
)

// MockTemporalClient stands in for the workflow engine.
type MockTemporalClient struct {
	mock.Mock
}

func (m *MockTemporalClient) StartWorkflow(ctx context.Context, workflowID string, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	callArgs := m.Called(ctx, workflowID, workflow, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).(client.WorkflowRun), callArgs.Error(1)
}

func (m *MockTemporalClient) GetWorkflowStatus(ctx context.Context, workflowID string) (temporal.WorkflowStatus, error) {
	args := m.Called(ctx, workflowID)
	return args.Get(0).(temporal.WorkflowStatus), args.Error(1)
}

func (m *MockTemporalClient) CancelWorkflow(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)
	return args.Error(0)
}

func (m *MockTemporalClient) GetTaskQueue() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockTemporalClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// startedRun is the handle returned for a started stack or teardown workflow.
type startedRun struct{ id string }

func (r startedRun) GetID() string    { return r.id }
func (r startedRun) GetRunID() string { return r.id + "-run" }

func (startedRun) Get(context.Context, interface{}) error { return nil }

func (startedRun) GetWithOptions(context.Context, interface{}, client.WorkflowRunGetOptions) error {
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (p *recordingPublisher) Publish(event protocol.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) pipelineEvents() []protocol.PipelineLifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []protocol.PipelineLifecycleEvent
	for _, e := range p.events {
		if pe, ok := e.(protocol.PipelineLifecycleEvent); ok {
			out = append(out, pe)
		}
	}
	return out
}

// fakeBrokers resolves every cluster to a fixed broker list.
type fakeBrokers struct {
	brokers []string
	err     error
	calls   int
}

func (f *fakeBrokers) ResolveBrokers(_ context.Context, _, _ string) ([]string, error) {
	f.calls++
	return f.brokers, f.err
}
