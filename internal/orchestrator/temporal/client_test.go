// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/config"
)

// mockableClient records the workflow calls made through the wrapper.
type mockableClient struct {
	mock.Mock
}

func (m *mockableClient) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	called := m.Called(ctx, options, workflow)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(client.WorkflowRun), called.Error(1)
}

func (m *mockableClient) DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	args := m.Called(ctx, workflowID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*workflowservice.DescribeWorkflowExecutionResponse), args.Error(1)
}

func (m *mockableClient) CancelWorkflow(ctx context.Context, workflowID, runID string) error {
	return m.Called(ctx, workflowID, runID).Error(0)
}

func (m *mockableClient) Close() {
	m.Called()
}

func TestMapWorkflowExecutionStatus(t *testing.T) {
	cases := map[enums.WorkflowExecutionStatus]WorkflowStatus{
		enums.WORKFLOW_EXECUTION_STATUS_RUNNING:          WorkflowStatusRunning,
		enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:        WorkflowStatusCompleted,
		enums.WORKFLOW_EXECUTION_STATUS_FAILED:           WorkflowStatusFailed,
		enums.WORKFLOW_EXECUTION_STATUS_CANCELED:         WorkflowStatusCanceled,
		enums.WORKFLOW_EXECUTION_STATUS_TERMINATED:       WorkflowStatusTerminated,
		enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:        WorkflowStatusTimedOut,
		enums.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW: WorkflowStatusUnknown,
		enums.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED:      WorkflowStatusUnknown,
	}
	for in, want := range cases {
		t.Run(in.String(), func(t *testing.T) {
			assert.Equal(t, want, MapWorkflowExecutionStatus(in))
		})
	}
}

func TestGetWorkflowStatus_ThroughClient(t *testing.T) {
	mockClient := new(mockableClient)
	mockClient.On("DescribeWorkflowExecution", mock.Anything, "clickstream-p1-1", "").Return(
		&workflowservice.DescribeWorkflowExecutionResponse{
			WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
				Status: enums.WORKFLOW_EXECUTION_STATUS_COMPLETED,
			},
		}, nil)
	mockClient.On("DescribeWorkflowExecution", mock.Anything, "nonexistent-workflow", "").Return(
		nil, errors.New("workflow not found"))

	c := newClientWithAPI(mockClient, "queue", config.WorkflowOptions{})

	status, err := c.GetWorkflowStatus(context.Background(), "clickstream-p1-1")
	assert.NoError(t, err)
	assert.Equal(t, WorkflowStatusCompleted, status)

	status, err = c.GetWorkflowStatus(context.Background(), "nonexistent-workflow")
	assert.Error(t, err)
	assert.Equal(t, WorkflowStatusUnknown, status)
	assert.Contains(t, err.Error(), "workflow not found")
}

func TestStartWorkflow_Options(t *testing.T) {
	mockClient := new(mockableClient)
	mockClient.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == "clickstream-p1-2" &&
			o.TaskQueue == "queue" &&
			o.WorkflowIDReusePolicy == enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY &&
			o.WorkflowIDConflictPolicy == enums.WORKFLOW_ID_CONFLICT_POLICY_FAIL &&
			o.WorkflowExecutionTimeout == time.Hour
	}), "StackWorkflow").Return(nil, errors.New("already started")).Once()

	c := newClientWithAPI(mockClient, "queue", config.WorkflowOptions{WorkflowExecutionTimeout: time.Hour})

	_, err := c.StartWorkflow(context.Background(), "clickstream-p1-2", "StackWorkflow", "input")
	assert.ErrorContains(t, err, "already started")
	mockClient.AssertExpectations(t)
}

func TestWorkflowStatus_String(t *testing.T) {
	assert.Equal(t, "unknown", WorkflowStatusUnknown.String())
	assert.Equal(t, "running", WorkflowStatusRunning.String())
	assert.Equal(t, "timed_out", WorkflowStatusTimedOut.String())
	assert.Equal(t, "unknown", WorkflowStatus(99).String())
}

func TestWorkflowStatus_Terminal(t *testing.T) {
	assert.False(t, WorkflowStatusUnknown.Terminal())
	assert.False(t, WorkflowStatusRunning.Terminal())
	for _, s := range []WorkflowStatus{
		WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCanceled,
		WorkflowStatusTerminated, WorkflowStatusTimedOut,
	} {
		assert.True(t, s.Terminal(), s.String())
	}
}

func TestCancelWorkflow(t *testing.T) {
	mockClient := new(mockableClient)
	mockClient.On("CancelWorkflow", mock.Anything, "clickstream-p1-1", "").Return(nil).Once()
	mockClient.On("CancelWorkflow", mock.Anything, "gone", "").Return(errors.New("not found")).Once()

	c := newClientWithAPI(mockClient, "queue", config.WorkflowOptions{})

	assert.NoError(t, c.CancelWorkflow(context.Background(), "clickstream-p1-1"))
	err := c.CancelWorkflow(context.Background(), "gone")
	assert.ErrorContains(t, err, "failed to cancel workflow gone")
	mockClient.AssertExpectations(t)
}
