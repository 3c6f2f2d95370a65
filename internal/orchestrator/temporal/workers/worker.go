// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/activities"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/workflows"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTemporalLogger().With().Str("component", "stack_worker").Logger()
		log = &l
	})
	return log
}

// ErrWorkerStopped is returned by Start on a worker that was already stopped.
var ErrWorkerStopped = errors.New("stack worker was stopped, create a new one")

// Worker polls the stack task queue and runs the stack and teardown workflows
// together with their cloud activities.
type Worker struct {
	temporalClient client.Client
	taskQueue      string
	options        worker.Options
	stacks         *activities.StackActivities
	pipelines      *activities.PipelineActivities

	mu      sync.Mutex
	worker  worker.Worker
	done    chan struct{}
	exited  chan struct{}
	stopped bool
}

// NewWorker wires the stack deployer and the pipeline finalizer into a worker
// bound to the configured task queue.
func NewWorker(
	temporalClient client.Client,
	cfg *config.AppConfig,
	deployer activities.StackDeployer,
	finalizer activities.PipelineFinalizer,
) *Worker {
	return &Worker{
		temporalClient: temporalClient,
		taskQueue:      cfg.Temporal.TaskQueue,
		options:        workerOptions(cfg.Temporal.Worker),
		stacks:         activities.NewStackActivities(deployer),
		pipelines:      activities.NewPipelineActivities(finalizer),
	}
}

func workerOptions(cfg config.WorkerConfig) worker.Options {
	return worker.Options{
		MaxConcurrentActivityExecutionSize:      cfg.MaxConcurrentActivityExecutions,
		MaxConcurrentLocalActivityExecutionSize: cfg.MaxConcurrentActivityExecutions,
		MaxConcurrentWorkflowTaskExecutionSize:  cfg.MaxConcurrentWorkflows,
		WorkerActivitiesPerSecond:               cfg.ActivitiesPerSecond,
		WorkerLocalActivitiesPerSecond:          cfg.ActivitiesPerSecond,
		TaskQueueActivitiesPerSecond:            cfg.ActivitiesPerSecond,
	}
}

// Start registers workflows and activities and begins polling in the
// background. Polling ends on Stop or when ctx is done. Calling Start on a
// running worker is a no-op.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrWorkerStopped
	}
	if w.worker != nil {
		getLog().Debug().Str("task_queue", w.taskQueue).Msg("Stack worker already running")
		return nil
	}

	w.worker = worker.New(w.temporalClient, w.taskQueue, w.options)
	w.register()

	done := make(chan struct{})
	w.done = done
	interrupt := make(chan interface{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		close(interrupt)
	}()

	running := w.worker
	exited := make(chan struct{})
	w.exited = exited
	go func() {
		defer close(exited)
		if err := running.Run(interrupt); err != nil {
			getLog().Error().Err(err).Str("task_queue", w.taskQueue).Msg("Stack worker exited with error")
		}
	}()

	getLog().Info().
		Str("task_queue", w.taskQueue).
		Strs("workflows", w.GetRegisteredWorkflows()).
		Strs("activities", w.GetRegisteredActivities()).
		Msg("Stack worker started")
	return nil
}

func (w *Worker) register() {
	w.worker.RegisterWorkflowWithOptions(workflows.StackWorkflow,
		workflow.RegisterOptions{Name: workflows.StackWorkflowName})
	w.worker.RegisterWorkflowWithOptions(workflows.TeardownWorkflow,
		workflow.RegisterOptions{Name: workflows.TeardownWorkflowName})

	w.worker.RegisterActivityWithOptions(w.stacks.DeployStackActivity,
		activity.RegisterOptions{Name: workflows.DeployStackActivityName})
	w.worker.RegisterActivityWithOptions(w.stacks.DeleteStackActivity,
		activity.RegisterOptions{Name: workflows.DeleteStackActivityName})
	w.worker.RegisterActivityWithOptions(w.pipelines.FinalizePipelineDeletionActivity,
		activity.RegisterOptions{Name: workflows.FinalizePipelineDeletionActivityName})
}

// Stop ends polling and waits for in-flight tasks to drain. A stopped worker
// cannot be started again.
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.worker == nil {
		return nil
	}

	getLog().Info().Str("task_queue", w.taskQueue).Msg("Stopping stack worker")
	close(w.done)
	<-w.exited
	w.worker = nil
	getLog().Info().Msg("Stack worker stopped")
	return nil
}

// GetRegisteredActivities lists the activity names the worker serves.
func (w *Worker) GetRegisteredActivities() []string {
	return []string{
		workflows.DeployStackActivityName,
		workflows.DeleteStackActivityName,
		workflows.FinalizePipelineDeletionActivityName,
	}
}

// GetRegisteredWorkflows lists the workflow names the worker serves.
func (w *Worker) GetRegisteredWorkflows() []string {
	return []string{
		workflows.StackWorkflowName,
		workflows.TeardownWorkflowName,
	}
}
