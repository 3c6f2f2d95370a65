// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package utils

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
)

// ActivitySettingsFromConfig captures the configured activity options so they
// can travel inside a workflow input.
func ActivitySettingsFromConfig(cfg *config.AppConfig) types.ActivitySettings {
	return types.ActivitySettings{
		StartToCloseTimeout:    cfg.Temporal.Activity.StartToCloseTimeout,
		ScheduleToCloseTimeout: cfg.Temporal.Activity.ScheduleToCloseTimeout,
		HeartbeatTimeout:       cfg.Temporal.Activity.HeartbeatTimeout,
		InitialInterval:        cfg.Temporal.Activity.RetryPolicy.InitialInterval,
		BackoffCoefficient:     cfg.Temporal.Activity.RetryPolicy.BackoffCoefficient,
		MaximumInterval:        cfg.Temporal.Activity.RetryPolicy.MaximumInterval,
		MaximumAttempts:        cfg.Temporal.Activity.RetryPolicy.MaximumAttempts,
	}
}

// GetActivityOptions returns workflow.ActivityOptions from settings.
// Zero values fall back to a one hour start-to-close timeout.
func GetActivityOptions(s types.ActivitySettings) workflow.ActivityOptions {
	startToClose := s.StartToCloseTimeout
	if startToClose <= 0 {
		startToClose = time.Hour
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout:    startToClose,
		ScheduleToCloseTimeout: s.ScheduleToCloseTimeout,
		HeartbeatTimeout:       s.HeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    s.InitialInterval,
			BackoffCoefficient: s.BackoffCoefficient,
			MaximumInterval:    s.MaximumInterval,
			MaximumAttempts:    s.MaximumAttempts,
		},
	}
}

// GetWorkflowExecutionTimeout returns the workflow execution timeout from config
func GetWorkflowExecutionTimeout(cfg *config.AppConfig) time.Duration {
	return cfg.Temporal.Workflow.WorkflowExecutionTimeout
}

// GetWorkflowRunTimeout returns the workflow run timeout from config
func GetWorkflowRunTimeout(cfg *config.AppConfig) time.Duration {
	return cfg.Temporal.Workflow.WorkflowRunTimeout
}

// GetWorkflowTaskTimeout returns the workflow task timeout from config
func GetWorkflowTaskTimeout(cfg *config.AppConfig) time.Duration {
	return cfg.Temporal.Workflow.WorkflowTaskTimeout
}
