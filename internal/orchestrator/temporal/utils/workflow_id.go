// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package utils provides shared utility functions for Temporal workflows and activities.
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var invalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// sanitize keeps letters, digits and single hyphens.
func sanitize(s string) string {
	s = invalidIDChars.ReplaceAllString(strings.TrimSpace(s), "-")
	return strings.Trim(s, "-")
}

// StackWorkflowID is the deterministic execution reference of one pipeline
// version: "<prefix>-<pipelineId>-<version>". Re-submitting the same version
// targets the same workflow execution.
func StackWorkflowID(prefix, pipelineID, version string) string {
	if p := sanitize(prefix); p != "" {
		return fmt.Sprintf("%s-%s-%s", p, sanitize(pipelineID), sanitize(version))
	}
	return fmt.Sprintf("%s-%s", sanitize(pipelineID), sanitize(version))
}
