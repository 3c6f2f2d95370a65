// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noldarim/clickstream/internal/orchestrator/models"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
)

// ListProjects handles GET /api/project?order=&pageNumber=&pageSize=
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &services.ValidationError{}
	pageNumber, pageSize := parsePaging(q, verr)
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.projects.List(r.Context(), q.Get("order"), pageNumber, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(page, ""))
}

// CreateProject handles POST /api/project
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var body models.Project
	empty, err := decodeBody(r, &body)
	if err != nil {
		writeError(w, r, invalidBody(err))
		return
	}

	verr := &services.ValidationError{}
	if empty {
		verr.Add(services.LocationBody, "", msgValueEmpty, map[string]interface{}{})
	}
	if body.Name == "" {
		verr.Add(services.LocationBody, "name", msgValueEmpty, nil)
	}
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	token := r.Header.Get(services.RequestIDHeader)
	id, err := h.projects.Create(r.Context(), token, GetOperator(r.Context()), &body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(map[string]string{"id": id}, "Project created."))
}

// GetProject handles GET /api/project/{id}
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(project, ""))
}

// UpdateProject handles PUT /api/project/{id}
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var body models.Project
	if _, err := decodeBody(r, &body); err != nil {
		writeError(w, r, invalidBody(err))
		return
	}

	verr := &services.ValidationError{}
	switch {
	case body.ID == "":
		body.ID = projectID
	case body.ID != projectID:
		verr.Add(services.LocationBody, "id", "ID in path does not match ID in body.", body.ID)
	}
	if body.Name == "" {
		verr.Add(services.LocationBody, "name", msgValueEmpty, nil)
	}
	if err := verr.ErrOrNil(); err != nil {
		writeError(w, r, err)
		return
	}

	token := r.Header.Get(services.RequestIDHeader)
	if err := h.projects.Update(r.Context(), token, GetOperator(r.Context()), &body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ok(nil, "Project updated."))
}

// DeleteProject handles DELETE /api/project/{id}
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(services.RequestIDHeader)
	if err := h.projects.Delete(r.Context(), token, GetOperator(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(nil, "Project deleted."))
}

// VerifyProject handles GET /api/project/verify/{id}
func (h *Handlers) VerifyProject(w http.ResponseWriter, r *http.Request) {
	exist, err := h.projects.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(map[string]bool{"exist": exist}, ""))
}
