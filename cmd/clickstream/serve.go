// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator"
	"github.com/noldarim/clickstream/internal/server"
	"github.com/noldarim/clickstream/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.CloseGlobal()

			mainLog := logger.GetLogger("main")
			mainLog.Info().Msg("Starting clickstream API server")

			// This context drives the broadcaster and the worker.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			shutdownTracer, err := telemetry.InitTracer(ctx, &cfg.Telemetry)
			if err != nil {
				return err
			}
			defer shutdownTracer(context.Background())

			var metrics *telemetry.Metrics
			if cfg.Telemetry.MetricsEnabled {
				metrics = telemetry.NewMetrics()
			}
			publisher := server.NewChannelPublisher(0)

			opts := []orchestrator.Option{
				orchestrator.WithEventPublisher(publisher),
				orchestrator.WithMetrics(metrics),
			}
			if withWorker {
				opts = append(opts, orchestrator.WithWorker())
			}
			orch, err := orchestrator.New(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			if err := orch.Start(ctx); err != nil {
				orch.Close()
				return err
			}

			srv := server.New(cfg, orch.PipelineService(), orch.ProjectService(), metrics, publisher)

			serverErrChan := make(chan error, 1)
			go func() {
				serverErrChan <- srv.Run(ctx)
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
			case err := <-serverErrChan:
				if err != nil {
					mainLog.Error().Err(err).Msg("Server error")
				}
			}

			// Graceful shutdown: fresh context with timeout, independent of ctx.
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
			defer shutdownCancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				mainLog.Error().Err(err).Msg("Error shutting down server")
			}

			cancel()
			if err := orch.Close(); err != nil {
				mainLog.Error().Err(err).Msg("Error closing orchestrator")
			}
			mainLog.Info().Msg("API server shut down")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the provisioning worker in this process")
	return cmd
}
