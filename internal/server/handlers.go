// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noldarim/clickstream/internal/orchestrator/services"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	pipelines *services.PipelineService
	projects  *services.ProjectService
	regions   map[string]struct{}
}

// NewHandlers creates the handler set. Pipelines may only target regions.
func NewHandlers(pipelines *services.PipelineService, projects *services.ProjectService, regions []string) *Handlers {
	allowed := make(map[string]struct{}, len(regions))
	for _, region := range regions {
		allowed[region] = struct{}{}
	}
	return &Handlers{pipelines: pipelines, projects: projects, regions: allowed}
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ok(map[string]string{"status": "ok"}, ""))
}

// --- helpers ---

// decodeBody reads a JSON object into v. empty is true when the body is
// absent or an empty object.
func decodeBody(r *http.Request, v interface{}) (empty bool, err error) {
	if r.Body == nil {
		return true, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return false, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return true, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false, err
	}
	if len(fields) == 0 {
		return true, nil
	}
	return false, json.Unmarshal(raw, v)
}

func invalidBody(err error) *services.ValidationError {
	getLog().Debug().Err(err).Msg("Rejected request body")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return services.NewValidationError(services.LocationBody, "", msgBodyTooLarge, nil)
	}
	return services.NewValidationError(services.LocationBody, "", "Body is not valid JSON.", nil)
}

// parsePaging reads pageNumber (default 1) and pageSize (default 0, all items).
func parsePaging(q url.Values, verr *services.ValidationError) (pageNumber, pageSize int) {
	return parseIntParam(q, "pageNumber", 1, verr), parseIntParam(q, "pageSize", 0, verr)
}

func parseIntParam(q url.Values, name string, def int, verr *services.ValidationError) int {
	raw := q.Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		verr.Add(services.LocationQuery, name, "Value must be a non-negative integer.", raw)
		return def
	}
	return n
}

func emptyToNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
