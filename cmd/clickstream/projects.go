// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/cli"
	"github.com/noldarim/clickstream/internal/logger"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect projects",
	}

	var order string
	list := &cobra.Command{
		Use:   "list",
		Short: "List live projects",
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

			projects, err := db.ListProjects(cmd.Context(), order)
			if err != nil {
				return err
			}
			cli.PrintProjects(cmd.OutOrStdout(), projects)
			return nil
		},
	}
	list.Flags().StringVar(&order, "order", "asc", "creation time order, asc or desc")

	cmd.AddCommand(list)
	return cmd
}
