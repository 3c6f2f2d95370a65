// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
)

// CreatePipeline handles POST /api/pipeline
func (h *Handlers) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var body models.Pipeline
	empty, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, r, invalidBody(err))
		return
	}

	verr := &services.ValidationError{}
	if empty {
		verr.Add(services.LocationBody, "", msgValueEmpty, map[string]interface{}{})
	}
	if body.ProjectID == "" {
		verr.Add(services.LocationBody, "projectId", msgValueEmpty, nil)
	}
	token := r.Header.Get(services.RequestIDHeader)
	if token == "" {
		verr.Add(services.LocationHeaders, services.RequestIDHeader, msgValueEmpty, nil)
	}
	if !empty {
		h.checkPipelineBody(&body, verr)
	}
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	body.NormalizeSinks()
	id, err := h.pipelines.Create(r.Context(), token, GetOperator(r.Context()), &body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(map[string]string{"id": id}, "Pipeline added."))
}

// GetPipeline handles GET /api/pipeline/{id}?pid=
func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	projectID := r.URL.Query().Get("pid")
	if projectID == "" {
		writeError(w, r, services.NewValidationError(services.LocationQuery, "pid", msgValueEmpty, nil))
		return
	}

	pipeline, err := h.pipelines.Get(r.Context(), projectID, pipelineID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(pipeline, ""))
}

// ListPipelines handles GET /api/pipeline?pid=&version=&pageNumber=&pageSize=
func (h *Handlers) ListPipelines(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &services.ValidationError{}
	pageNumber, pageSize := parsePaging(q, verr)
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.pipelines.List(r.Context(), q.Get("pid"), q.Get("version"), pageNumber, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(page, ""))
}

// UpdatePipeline handles PUT /api/pipeline/{id}
func (h *Handlers) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")

	var body models.Pipeline
	empty, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, r, invalidBody(err))
		return
	}

	verr := &services.ValidationError{}
	if body.ProjectID == "" {
		verr.Add(services.LocationBody, "projectId", msgValueEmpty, nil)
	}
	if body.Version == "" {
		verr.Add(services.LocationBody, "version", msgValueEmpty, nil)
	}
	if body.PipelineID == "" {
		verr.Add(services.LocationBody, "pipelineId", msgValueEmpty, nil)
	}
	if body.PipelineID != pipelineID {
		verr.Add(services.LocationBody, "pipelineId", "ID in path does not match ID in body.", emptyToNil(body.PipelineID))
	}
	if !empty {
		h.checkPipelineBody(&body, verr)
	}
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	body.NormalizeSinks()
	token := r.Header.Get(services.RequestIDHeader)
	if err := h.pipelines.Update(r.Context(), token, GetOperator(r.Context()), &body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(nil, "Pipeline updated."))
}

// DeletePipeline handles DELETE /api/pipeline/{id}?pid=
func (h *Handlers) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "id")
	projectID := r.URL.Query().Get("pid")
	if projectID == "" {
		verr := &services.ValidationError{}
		verr.Add(services.LocationParams, "id", "query.pid value is empty.", pipelineID)
		verr.Add(services.LocationQuery, "pid", msgValueEmpty, nil)
		writeError(w, r, verr.ErrOrNil())
		return
	}

	token := r.Header.Get(services.RequestIDHeader)
	if err := h.pipelines.Delete(r.Context(), token, GetOperator(r.Context()), projectID, pipelineID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil, "Pipeline deleted."))
}

// checkPipelineBody validates the fields that do not need the store.
func (h *Handlers) checkPipelineBody(p *models.Pipeline, verr *services.ValidationError) {
	if p.Region != "" {
		if _, supported := h.regions[p.Region]; !supported {
			verr.Add(services.LocationBody, "region", "Region is not supported.", p.Region)
		}
	}
	if sinkType := p.IngestionServer.Data().SinkType; sinkType != "" && !sinkType.Valid() {
		verr.Add(services.LocationBody, "ingestionServer.sinkType", "Invalid sink type.", string(sinkType))
	}
}
