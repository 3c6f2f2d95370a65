// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/noldarim/clickstream/internal/cloud"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/types"
)

// Application error types returned by stack activities.
const (
	ErrTypeStackFailed       = "StackFailed"
	ErrTypeStackNotUpdatable = "StackNotUpdatable"
	defaultStackPollInterval = 15 * time.Second
)

// StackDeployer is the cloud stack API used by StackActivities.
type StackDeployer interface {
	DescribeStack(ctx context.Context, region, name string) (*cloud.StackState, error)
	DeployStack(ctx context.Context, region string, step models.StackStep) (*cloud.DeployResult, error)
	DeleteStack(ctx context.Context, region, name string) error
}

var _ StackDeployer = (*cloud.StackDeployer)(nil)

// StackActivities deploys and deletes the stacks of a plan.
type StackActivities struct {
	deployer StackDeployer
}

// NewStackActivities creates a new instance of StackActivities
func NewStackActivities(deployer StackDeployer) *StackActivities {
	return &StackActivities{deployer: deployer}
}

// DeployStackActivity creates or updates one stack and waits until it settles.
// A stack that is still transitioning from an earlier attempt is awaited
// instead of being resubmitted.
func (a *StackActivities) DeployStackActivity(ctx context.Context, input types.StackActivityInput) (*types.StackActivityOutput, error) {
	logger := activity.GetLogger(ctx)
	step := input.Step
	logger.Info("Deploying stack", "stack", step.StackName, "action", step.Action, "region", input.Region)

	activity.RecordHeartbeat(ctx, "describing "+step.StackName)
	current, err := a.deployer.DescribeStack(ctx, input.Region, step.StackName)
	if err != nil {
		return nil, err
	}

	if current == nil || !current.InProgress() {
		result, err := a.deployer.DeployStack(ctx, input.Region, step)
		if err != nil {
			if errors.Is(err, cloud.ErrStackNotUpdatable) {
				return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeStackNotUpdatable, err)
			}
			return nil, err
		}
		if result.NoChange {
			logger.Info("Stack unchanged", "stack", step.StackName)
			return &types.StackActivityOutput{
				StackName: step.StackName,
				StackID:   result.StackID,
				Status:    stackStatusOf(current),
				NoChange:  true,
			}, nil
		}
	} else {
		logger.Info("Stack already transitioning, waiting", "stack", step.StackName, "status", current.Status)
	}

	state, err := a.waitForStack(ctx, input)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("stack %s disappeared during deployment", step.StackName), ErrTypeStackFailed, nil)
	}
	if !state.Succeeded() || state.Deleted() {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("stack %s ended in %s: %s", step.StackName, state.Status, state.Reason), ErrTypeStackFailed, nil)
	}

	logger.Info("Stack deployed", "stack", step.StackName, "status", state.Status)
	return outputOf(state), nil
}

// DeleteStackActivity deletes one stack and waits until it is gone. Deleting
// a stack that does not exist succeeds.
func (a *StackActivities) DeleteStackActivity(ctx context.Context, input types.StackActivityInput) (*types.StackActivityOutput, error) {
	logger := activity.GetLogger(ctx)
	name := input.Step.StackName
	logger.Info("Deleting stack", "stack", name, "region", input.Region)

	activity.RecordHeartbeat(ctx, "describing "+name)
	current, err := a.deployer.DescribeStack(ctx, input.Region, name)
	if err != nil {
		return nil, err
	}
	if current == nil || current.Deleted() {
		logger.Info("Stack already deleted", "stack", name)
		return &types.StackActivityOutput{StackName: name, Status: cloud.StackStatusDeleteComplete}, nil
	}

	if !current.InProgress() {
		if err := a.deployer.DeleteStack(ctx, input.Region, name); err != nil {
			return nil, err
		}
	}

	state, err := a.waitForStack(ctx, input)
	if err != nil {
		return nil, err
	}
	if state != nil && !state.Deleted() {
		// Retryable: a later attempt resubmits the delete.
		return nil, fmt.Errorf("stack %s ended in %s: %s", name, state.Status, state.Reason)
	}

	logger.Info("Stack deleted", "stack", name)
	return &types.StackActivityOutput{StackName: name, Status: cloud.StackStatusDeleteComplete}, nil
}

// waitForStack polls until the stack stops transitioning. Returns nil when
// the stack no longer exists.
func (a *StackActivities) waitForStack(ctx context.Context, input types.StackActivityInput) (*cloud.StackState, error) {
	interval := input.PollInterval
	if interval <= 0 {
		interval = defaultStackPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := a.deployer.DescribeStack(ctx, input.Region, input.Step.StackName)
		if err != nil {
			return nil, err
		}
		if state == nil || !state.InProgress() {
			return state, nil
		}
		activity.RecordHeartbeat(ctx, state.Status)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func outputOf(state *cloud.StackState) *types.StackActivityOutput {
	return &types.StackActivityOutput{
		StackName: state.Name,
		StackID:   state.ID,
		Status:    state.Status,
		Reason:    state.Reason,
		Outputs:   state.Outputs,
	}
}

func stackStatusOf(state *cloud.StackState) string {
	if state == nil {
		return ""
	}
	return state.Status
}
