// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noldarim/clickstream/internal/cloud"
	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal"
	"github.com/noldarim/clickstream/internal/orchestrator/temporal/workers"
	"github.com/noldarim/clickstream/internal/telemetry"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetOrchestratorLogger()
		log = &l
	})
	return log
}

// Orchestrator owns the long lived clients of the control plane (store,
// workflow engine, cloud SDK) and the services built on them.
type Orchestrator struct {
	store     *database.GormDB
	temporal  services.TemporalClient
	worker    *workers.Worker
	pipelines *services.PipelineService
	projects  *services.ProjectService
	config    *config.AppConfig
}

type options struct {
	publisher services.EventPublisher
	metrics   *telemetry.Metrics
	worker    bool
}

// Option customises New.
type Option func(*options)

// WithEventPublisher sends lifecycle events to publisher.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *options) { o.publisher = publisher }
}

// WithMetrics records operation metrics on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithWorker runs the stack provisioning worker in this process.
func WithWorker() Option {
	return func(o *options) { o.worker = true }
}

// New connects to the store, the workflow engine and the cloud SDK and wires
// the services. The worker, when enabled, is started by Start.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Orchestrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	temporalClient, err := temporal.NewClient(&cfg.Temporal)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	clouds, err := cloud.NewClients(ctx, &cfg.AWS)
	if err != nil {
		temporalClient.Close()
		store.Close()
		return nil, err
	}

	orch := assemble(cfg, store, temporalClient, cloud.NewMSKBrokerResolver(clouds), o)
	if o.worker {
		orch.worker = workers.NewWorker(temporalClient.GetTemporalClient(), cfg, cloud.NewStackDeployer(clouds), orch.pipelines)
	}
	return orch, nil
}

func assemble(cfg *config.AppConfig, store *database.GormDB, temporalClient services.TemporalClient, brokers services.BrokerResolver, o options) *Orchestrator {
	var pipelineOpts []services.PipelineOption
	if brokers != nil {
		pipelineOpts = append(pipelineOpts, services.WithBrokerResolver(brokers))
	}
	if o.publisher != nil {
		pipelineOpts = append(pipelineOpts, services.WithEventPublisher(o.publisher))
	}
	if o.metrics != nil {
		pipelineOpts = append(pipelineOpts, services.WithMetrics(o.metrics))
	}

	pipelines := services.NewPipelineService(store, temporalClient, cfg, pipelineOpts...)
	return &Orchestrator{
		store:     store,
		temporal:  temporalClient,
		pipelines: pipelines,
		projects:  services.NewProjectService(store, pipelines),
		config:    cfg,
	}
}

// Start starts the worker if one was requested.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.worker == nil {
		return nil
	}
	if err := o.worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start temporal worker: %w", err)
	}
	getLog().Info().Str("task_queue", o.config.Temporal.TaskQueue).Msg("Provisioning worker running")
	return nil
}

// PipelineService returns the pipeline service for the API server.
func (o *Orchestrator) PipelineService() *services.PipelineService {
	return o.pipelines
}

// ProjectService returns the project service for the API server.
func (o *Orchestrator) ProjectService() *services.ProjectService {
	return o.projects
}

// Store returns the metadata store.
func (o *Orchestrator) Store() *database.GormDB {
	return o.store
}

// Close stops the worker and releases every client.
func (o *Orchestrator) Close() error {
	getLog().Info().Msg("Shutting down orchestrator...")
	var errs []error

	if o.worker != nil {
		if closeErr := o.worker.Stop(); closeErr != nil {
			getLog().Error().Err(closeErr).Msg("Error stopping temporal worker")
			errs = append(errs, closeErr)
		}
	}

	if o.temporal != nil {
		if closeErr := o.temporal.Close(); closeErr != nil {
			getLog().Error().Err(closeErr).Msg("Error closing temporal client")
			errs = append(errs, closeErr)
		}
	}

	if o.store != nil {
		if closeErr := o.store.Close(); closeErr != nil {
			getLog().Error().Err(closeErr).Msg("Error closing store")
			errs = append(errs, closeErr)
		}
	}

	getLog().Info().Msg("Orchestrator shutdown complete")
	return errors.Join(errs...)
}
