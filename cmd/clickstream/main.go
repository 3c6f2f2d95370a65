// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command clickstream runs the pipeline control plane: the REST API, the
// provisioning worker and the operational maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/database"
)

var (
	configPath string
	envFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clickstream",
		Short:        "Clickstream analytics pipeline control plane",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default searches ./config.yaml, ./config, /etc/clickstream)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	root.AddCommand(newServeCmd(), newWorkerCmd(), newMigrateCmd(), newTemplatesCmd(), newProjectsCmd(), newPipelinesCmd())
	return root
}

// loadConfig reads the optional dotenv file, the configuration and starts
// the global logger. Callers must defer logger.CloseGlobal.
func loadConfig() (*config.AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.AppConfig) (*database.GormDB, error) {
	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}
