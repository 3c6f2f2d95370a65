// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli holds the operator facing helpers of the clickstream command:
// table rendering and pipeline definition files.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// PrintProjects writes projects as a table.
func PrintProjects(w io.Writer, projects []*models.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-36s  %-20s  %-14s  %-36s  %s\n", "ID", "NAME", "REGION", "PIPELINE", "CREATED")
	fmt.Fprintln(w, "────────────────────────────────────  ────────────────────  ──────────────  ────────────────────────────────────  ────────────────────")
	for _, p := range projects {
		fmt.Fprintf(w, "%-36s  %-20s  %-14s  %-36s  %s\n",
			truncate(p.ID, 36), truncate(p.Name, 20), p.Region, orDash(p.PipelineID), formatMillis(p.CreateAt))
	}
	fmt.Fprintln(w)
}

// PrintPipelines writes pipelines as a table.
func PrintPipelines(w io.Writer, pipelines []*models.Pipeline) {
	if len(pipelines) == 0 {
		fmt.Fprintln(w, "No pipelines found.")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-9s  %-14s  %s\n", "ID", "PROJECT", "STATUS", "SINK", "VERSION", "UPDATED")
	fmt.Fprintln(w, "────────────────────────────────────  ────────────────────  ──────────  ─────────  ──────────────  ────────────────────")
	for _, p := range pipelines {
		fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-9s  %-14s  %s\n",
			p.PipelineID, truncate(p.ProjectID, 20), p.Status, p.IngestionServer.Data().SinkType, p.Version, formatMillis(p.UpdateAt))
	}
	fmt.Fprintln(w)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
