// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Component names match the keys of log.levels in config.yaml.
const (
	ComponentOrchestrator = "orchestrator"
	ComponentTemporal     = "temporal"
	ComponentDatabase     = "database"
	ComponentAPI          = "api"
	ComponentCloud        = "cloud"
	ComponentPoller       = "poller"
)

// GetOrchestratorLogger returns the logger for pipeline and project services
func GetOrchestratorLogger() zerolog.Logger {
	return GetLogger(ComponentOrchestrator)
}

// GetTemporalLogger returns the logger for workflows, activities and the worker
func GetTemporalLogger() zerolog.Logger {
	return GetLogger(ComponentTemporal)
}

// GetDatabaseLogger returns the logger for the metadata store
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger(ComponentDatabase)
}

// GetAPILogger returns the logger for the HTTP server
func GetAPILogger() zerolog.Logger {
	return GetLogger(ComponentAPI)
}

// GetCloudLogger returns the logger for stack deployment calls
func GetCloudLogger() zerolog.Logger {
	return GetLogger(ComponentCloud)
}

// GetPollerLogger returns the logger for the status poller
func GetPollerLogger() zerolog.Logger {
	return GetLogger(ComponentPoller)
}
