// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package temporal

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
)

// WorkflowStatus is the engine-side state of a stack or teardown execution.
type WorkflowStatus int

const (
	WorkflowStatusUnknown WorkflowStatus = iota
	WorkflowStatusRunning
	WorkflowStatusCompleted
	WorkflowStatusFailed
	WorkflowStatusCanceled
	WorkflowStatusTerminated
	WorkflowStatusTimedOut
)

var workflowStatusNames = map[WorkflowStatus]string{
	WorkflowStatusRunning:    "running",
	WorkflowStatusCompleted:  "completed",
	WorkflowStatusFailed:     "failed",
	WorkflowStatusCanceled:   "canceled",
	WorkflowStatusTerminated: "terminated",
	WorkflowStatusTimedOut:   "timed_out",
}

func (s WorkflowStatus) String() string {
	if name, ok := workflowStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether an execution in this state will make no further
// progress.
func (s WorkflowStatus) Terminal() bool {
	return s != WorkflowStatusRunning && s != WorkflowStatusUnknown
}

var executionStatuses = map[enums.WorkflowExecutionStatus]WorkflowStatus{
	enums.WORKFLOW_EXECUTION_STATUS_RUNNING:    WorkflowStatusRunning,
	enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:  WorkflowStatusCompleted,
	enums.WORKFLOW_EXECUTION_STATUS_FAILED:     WorkflowStatusFailed,
	enums.WORKFLOW_EXECUTION_STATUS_CANCELED:   WorkflowStatusCanceled,
	enums.WORKFLOW_EXECUTION_STATUS_TERMINATED: WorkflowStatusTerminated,
	enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:  WorkflowStatusTimedOut,
}

var (
	temporalLog     *zerolog.Logger
	temporalLogOnce sync.Once
)

func getTemporalLog() *zerolog.Logger {
	temporalLogOnce.Do(func() {
		l := logger.GetTemporalLogger().With().Str("component", "client").Logger()
		temporalLog = &l
	})
	return temporalLog
}

// workflowAPI is the subset of client.Client the wrapper calls.
type workflowAPI interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	Close()
}

var _ workflowAPI = client.Client(nil)

// Client starts, describes and cancels stack workflows on one task queue.
type Client struct {
	temporalClient client.Client
	api            workflowAPI
	namespace      string
	taskQueue      string
	timeouts       config.WorkflowOptions
}

// NewClient creates a new Temporal client wrapper
func NewClient(cfg *config.TemporalConfig) (*Client, error) {
	options := client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    logger.GetTemporalLogAdapter(logger.ComponentTemporal),
	}

	temporalClient, err := client.Dial(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create Temporal client: %w", err)
	}

	getTemporalLog().Info().
		Str("host_port", cfg.HostPort).
		Str("namespace", cfg.Namespace).
		Str("task_queue", cfg.TaskQueue).
		Msg("Connected to Temporal")

	return &Client{
		temporalClient: temporalClient,
		api:            temporalClient,
		namespace:      cfg.Namespace,
		taskQueue:      cfg.TaskQueue,
		timeouts:       cfg.Workflow,
	}, nil
}

// newClientWithAPI wraps an arbitrary implementation of the client calls.
func newClientWithAPI(api workflowAPI, taskQueue string, timeouts config.WorkflowOptions) *Client {
	return &Client{api: api, taskQueue: taskQueue, timeouts: timeouts}
}

// GetTemporalClient returns the underlying Temporal client
func (c *Client) GetTemporalClient() client.Client {
	return c.temporalClient
}

// GetTaskQueue returns the task queue name
func (c *Client) GetTaskQueue() string {
	return c.taskQueue
}

// StartWorkflow starts a stack or teardown execution under workflowID. An id
// whose previous run failed may be reused; a running or completed one is
// rejected.
func (c *Client) StartWorkflow(ctx context.Context, workflowID string, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                c.taskQueue,
		WorkflowIDReusePolicy:    enums.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE_FAILED_ONLY,
		WorkflowIDConflictPolicy: enums.WORKFLOW_ID_CONFLICT_POLICY_FAIL,
		WorkflowExecutionTimeout: c.timeouts.WorkflowExecutionTimeout,
		WorkflowRunTimeout:       c.timeouts.WorkflowRunTimeout,
		WorkflowTaskTimeout:      c.timeouts.WorkflowTaskTimeout,
	}

	we, err := c.api.ExecuteWorkflow(ctx, options, workflow, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start workflow: %w", err)
	}

	getTemporalLog().Info().
		Str("workflow_id", workflowID).
		Str("run_id", we.GetRunID()).
		Interface("workflow", workflow).
		Msg("Workflow started")
	return we, nil
}

// MapWorkflowExecutionStatus translates an execution status reported by the
// server. Continued-as-new and unspecified executions map to unknown.
func MapWorkflowExecutionStatus(status enums.WorkflowExecutionStatus) WorkflowStatus {
	return executionStatuses[status]
}

// GetWorkflowStatus describes the latest run of workflowID. Unknown ids are
// reported as errors.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (WorkflowStatus, error) {
	desc, err := c.api.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return WorkflowStatusUnknown, fmt.Errorf("failed to describe workflow %s: %w", workflowID, err)
	}
	if desc.GetWorkflowExecutionInfo() == nil {
		return WorkflowStatusUnknown, nil
	}

	return MapWorkflowExecutionStatus(desc.GetWorkflowExecutionInfo().GetStatus()), nil
}

// CancelWorkflow requests cancellation of the latest run of workflowID.
func (c *Client) CancelWorkflow(ctx context.Context, workflowID string) error {
	if err := c.api.CancelWorkflow(ctx, workflowID, ""); err != nil {
		return fmt.Errorf("failed to cancel workflow %s: %w", workflowID, err)
	}

	getTemporalLog().Info().Str("workflow_id", workflowID).Msg("Workflow cancellation requested")
	return nil
}

// Close closes the Temporal client connection
func (c *Client) Close() error {
	if c.api != nil {
		c.api.Close()
		getTemporalLog().Info().Msg("Temporal client closed")
	}
	return nil
}
