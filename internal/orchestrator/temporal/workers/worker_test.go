// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package workers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noldarim/clickstream/internal/config"
)

type noopFinalizer struct{}

func (noopFinalizer) FinalizeDeletion(context.Context, string, string, string) error { return nil }

func TestWorker_Registrations(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Temporal.TaskQueue = "clickstream-stack-queue"

	w := NewWorker(nil, cfg, nil, noopFinalizer{})

	assert.Equal(t, "clickstream-stack-queue", w.taskQueue)
	assert.ElementsMatch(t, []string{"StackWorkflow", "TeardownWorkflow"}, w.GetRegisteredWorkflows())
	assert.ElementsMatch(t, []string{
		"DeployStackActivity",
		"DeleteStackActivity",
		"FinalizePipelineDeletionActivity",
	}, w.GetRegisteredActivities())
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := NewWorker(nil, &config.AppConfig{}, nil, noopFinalizer{})
	assert.NoError(t, w.Stop())
}

func TestWorker_StartAfterStop(t *testing.T) {
	w := NewWorker(nil, &config.AppConfig{}, nil, noopFinalizer{})
	assert.NoError(t, w.Stop())
	assert.ErrorIs(t, w.Start(context.Background()), ErrWorkerStopped)
}

func TestWorkerOptions(t *testing.T) {
	opts := workerOptions(config.WorkerConfig{
		MaxConcurrentActivityExecutions: 4,
		MaxConcurrentWorkflows:          2,
		ActivitiesPerSecond:             10,
	})
	assert.Equal(t, 4, opts.MaxConcurrentActivityExecutionSize)
	assert.Equal(t, 4, opts.MaxConcurrentLocalActivityExecutionSize)
	assert.Equal(t, 2, opts.MaxConcurrentWorkflowTaskExecutionSize)
	assert.Equal(t, 10.0, opts.TaskQueueActivitiesPerSecond)
}
