// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud talks to the cloud provider APIs that provision pipeline
// stacks and describe managed Kafka clusters.
package cloud

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/kafka"
	"github.com/rs/zerolog"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
)

var (
	cloudLog     *zerolog.Logger
	cloudLogOnce sync.Once
)

func getCloudLog() *zerolog.Logger {
	cloudLogOnce.Do(func() {
		l := logger.GetCloudLogger()
		cloudLog = &l
	})
	return cloudLog
}

// CloudFormationAPI defines the stack operations used by the deployer.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// KafkaAPI defines the managed Kafka operations used by the broker resolver.
type KafkaAPI interface {
	ListNodes(ctx context.Context, params *kafka.ListNodesInput, optFns ...func(*kafka.Options)) (*kafka.ListNodesOutput, error)
}

// SDK interface checks to ensure SDK clients satisfy interfaces
var (
	_ CloudFormationAPI = (*cloudformation.Client)(nil)
	_ KafkaAPI          = (*kafka.Client)(nil)
)

// Clients hands out region scoped SDK clients built from one base
// configuration. Clients are created on first use and cached.
type Clients struct {
	base     aws.Config
	endpoint string

	mu  sync.Mutex
	cfn map[string]CloudFormationAPI
	msk map[string]KafkaAPI
}

// NewClients loads the default credential chain for cfg.
func NewClients(ctx context.Context, cfg *config.AWSConfig) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	base, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	getCloudLog().Info().
		Str("region", cfg.Region).
		Str("profile", cfg.Profile).
		Bool("custom_endpoint", cfg.Endpoint != "").
		Msg("AWS clients configured")

	return &Clients{
		base:     base,
		endpoint: cfg.Endpoint,
		cfn:      make(map[string]CloudFormationAPI),
		msk:      make(map[string]KafkaAPI),
	}, nil
}

// CloudFormation returns the stack client for region.
func (c *Clients) CloudFormation(region string) CloudFormationAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.cfn[region]; ok {
		return client
	}
	client := cloudformation.NewFromConfig(c.base, func(o *cloudformation.Options) {
		o.Region = region
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
	c.cfn[region] = client
	return client
}

// Kafka returns the managed Kafka client for region.
func (c *Clients) Kafka(region string) KafkaAPI {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.msk[region]; ok {
		return client
	}
	client := kafka.NewFromConfig(c.base, func(o *kafka.Options) {
		o.Region = region
		if c.endpoint != "" {
			o.BaseEndpoint = aws.String(c.endpoint)
		}
	})
	c.msk[region] = client
	return client
}
