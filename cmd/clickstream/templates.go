// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage the stack template dictionary",
	}

	var file string
	load := &cobra.Command{
		Use:   "load",
		Short: "Store the stack template URLs from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.CloseGlobal()

			path := file
			if path == "" {
				path = cfg.Workflow.TemplatesFile
			}
			if path == "" {
				return fmt.Errorf("no templates file: pass --file or set workflow.templates_file")
			}

			templates, err := services.ReadTemplatesFile(path)
			if err != nil {
				return err
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := services.SaveTemplates(cmd.Context(), db, templates); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %d templates from %s\n", len(templates), path)
			return nil
		},
	}
	load.Flags().StringVarP(&file, "file", "f", "", "templates YAML file (default workflow.templates_file)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored stack template URLs",
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

			templates, err := services.LoadTemplates(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range templates.Keys() {
				fmt.Fprintf(out, "%s\t%s\n", key, templates[key])
			}
			return nil
		},
	}

	cmd.AddCommand(load, show)
	return cmd
}
