// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the metadata schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.CloseGlobal()

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting database migration (%s)...\n", cfg.Database.Driver)

			if err := db.AutoMigrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if err := db.ValidateSchema(); err != nil {
				return fmt.Errorf("schema validation failed after migration: %w", err)
			}

			fmt.Fprintln(out, "Database migration completed, schema is valid.")
			return nil
		},
	}
}
