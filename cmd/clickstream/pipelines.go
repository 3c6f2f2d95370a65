// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/noldarim/clickstream/internal/cli"
	"github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

func newPipelinesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Inspect and create pipelines",
	}

	var projectID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the live pipelines of a project",
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

			pipelines, err := db.ListPipelines(cmd.Context(), projectID, models.LatestVersionTag)
			if err != nil {
				return err
			}
			cli.PrintPipelines(cmd.OutOrStdout(), pipelines)
			return nil
		},
	}
	list.Flags().StringVarP(&projectID, "project", "p", "", "project id (default all projects)")

	var (
		file     string
		token    string
		operator string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a pipeline from a YAML definition and start provisioning",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := cli.LoadPipelineFile(file)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.CloseGlobal()

			orch, err := orchestrator.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer orch.Close()

			if token == "" {
				token = uuid.NewString()
			}
			id, err := orch.PipelineService().Create(cmd.Context(), token, operator, pipeline)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline %s created for project %s\n", id, pipeline.ProjectID)
			return nil
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "pipeline definition YAML file")
	create.Flags().StringVar(&token, "token", "", "idempotency token (default random)")
	create.Flags().StringVar(&operator, "operator", "cli", "operator recorded on the pipeline")
	_ = create.MarkFlagRequired("file")

	cmd.AddCommand(list, create)
	return cmd
}
