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
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the stack provisioning worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.CloseGlobal()

			mainLog := logger.GetLogger("main")
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			orch, err := orchestrator.New(ctx, cfg, orchestrator.WithWorker())
			if err != nil {
				return err
			}
			defer orch.Close()

			if err := orch.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			sig := <-sigChan
			mainLog.Info().Msgf("Received signal %v, stopping worker...", sig)
			return nil
		},
	}
}
