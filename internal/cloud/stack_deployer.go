// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// ErrStackNotUpdatable means the stack sits in a state that only allows delete.
var ErrStackNotUpdatable = errors.New("stack cannot be updated")

var stackCapabilities = []cfntypes.Capability{
	cfntypes.CapabilityCapabilityIam,
	cfntypes.CapabilityCapabilityNamedIam,
	cfntypes.CapabilityCapabilityAutoExpand,
}

// DeployResult is the outcome of submitting a create or update.
type DeployResult struct {
	StackID  string
	Created  bool
	NoChange bool
}

// StackDeployer creates, updates and deletes CloudFormation stacks.
type StackDeployer struct {
	client func(region string) CloudFormationAPI
}

// NewStackDeployer creates a deployer over region scoped clients.
func NewStackDeployer(clients *Clients) *StackDeployer {
	return &StackDeployer{client: clients.CloudFormation}
}

// NewStackDeployerWithClient creates a deployer that uses one client for every region.
func NewStackDeployerWithClient(client CloudFormationAPI) *StackDeployer {
	return &StackDeployer{client: func(string) CloudFormationAPI { return client }}
}

// DescribeStack returns the current state of name, or nil when it does not exist.
func (d *StackDeployer) DescribeStack(ctx context.Context, region, name string) (*StackState, error) {
	out, err := d.client(region).DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return nil, nil
	}

	stack := out.Stacks[0]
	state := &StackState{
		Name:    aws.ToString(stack.StackName),
		ID:      aws.ToString(stack.StackId),
		Status:  string(stack.StackStatus),
		Reason:  aws.ToString(stack.StackStatusReason),
		Outputs: make(map[string]string, len(stack.Outputs)),
	}
	for _, o := range stack.Outputs {
		state.Outputs[aws.ToString(o.OutputKey)] = aws.ToString(o.OutputValue)
	}
	return state, nil
}

// DeployStack creates the stack of step when it is absent and updates it
// otherwise. An update that changes nothing is reported as NoChange.
func (d *StackDeployer) DeployStack(ctx context.Context, region string, step models.StackStep) (*DeployResult, error) {
	current, err := d.DescribeStack(ctx, region, step.StackName)
	if err != nil {
		return nil, err
	}

	client := d.client(region)
	params := stackParameters(step.Parameters)
	tags := stackTags(step.Tags)

	if current == nil || current.Deleted() {
		out, err := client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(step.StackName),
			TemplateURL:  aws.String(step.TemplateURL),
			Parameters:   params,
			Tags:         tags,
			Capabilities: stackCapabilities,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stack %s: %w", step.StackName, err)
		}
		getCloudLog().Info().Str("stack", step.StackName).Str("region", region).Msg("Stack create submitted")
		return &DeployResult{StackID: aws.ToString(out.StackId), Created: true}, nil
	}

	if current.Status == string(cfntypes.StackStatusRollbackComplete) ||
		current.Status == string(cfntypes.StackStatusRollbackFailed) ||
		current.Status == string(cfntypes.StackStatusDeleteFailed) {
		return nil, fmt.Errorf("%w: %s is %s", ErrStackNotUpdatable, step.StackName, current.Status)
	}

	out, err := client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:    aws.String(step.StackName),
		TemplateURL:  aws.String(step.TemplateURL),
		Parameters:   params,
		Tags:         tags,
		Capabilities: stackCapabilities,
	})
	if err != nil {
		if isNoUpdates(err) {
			getCloudLog().Debug().Str("stack", step.StackName).Msg("Stack already up to date")
			return &DeployResult{StackID: current.ID, NoChange: true}, nil
		}
		return nil, fmt.Errorf("failed to update stack %s: %w", step.StackName, err)
	}
	getCloudLog().Info().Str("stack", step.StackName).Str("region", region).Msg("Stack update submitted")
	return &DeployResult{StackID: aws.ToString(out.StackId)}, nil
}

// DeleteStack submits deletion of name. Deleting a missing stack is a no-op.
func (d *StackDeployer) DeleteStack(ctx context.Context, region, name string) error {
	_, err := d.client(region).DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: aws.String(name),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil
		}
		return fmt.Errorf("failed to delete stack %s: %w", name, err)
	}
	getCloudLog().Info().Str("stack", name).Str("region", region).Msg("Stack delete submitted")
	return nil
}

func stackParameters(params map[string]string) []cfntypes.Parameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]cfntypes.Parameter, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Parameter{
			ParameterKey:   aws.String(k),
			ParameterValue: aws.String(params[k]),
		})
	}
	return out
}

func stackTags(tags map[string]string) []cfntypes.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]cfntypes.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

func isNoUpdates(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}
