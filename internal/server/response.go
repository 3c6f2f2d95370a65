// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noldarim/clickstream/internal/orchestrator/services"
)

// Response messages shared by every handler.
const (
	msgValidationFailed = "Parameter verification failed."
	msgUnexpected       = "Unexpected error occurred at server."
	msgConflict         = "Update error, check version and retry."
	msgInProgress       = "Pipeline is in progress, try again later."
	msgValueEmpty       = "Value is empty."
	msgNotModified      = "Not Modified."
	msgBodyTooLarge     = "Request body is too large."
)

// apiSuccess is the envelope of every 2xx response.
type apiSuccess struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// apiFail is the envelope of every 4xx/5xx response.
type apiFail struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   interface{} `json:"error,omitempty"`
}

func ok(data interface{}, message string) apiSuccess {
	return apiSuccess{Success: true, Message: message, Data: data}
}

func fail(message string) apiFail {
	return apiFail{Success: false, Message: message}
}

func internalError() apiFail {
	return apiFail{Success: false, Message: msgUnexpected, Error: "Error"}
}

func validationFailed(items []services.ValidationItem) apiFail {
	return apiFail{Success: false, Message: msgValidationFailed, Error: items}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps service errors onto the error envelope. Unexpected errors
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *services.ValidationError
	var notFound *services.NotFoundError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationFailed(verr.Items))

	case errors.Is(err, services.ErrRequestReplayed):
		writeJSON(w, http.StatusBadRequest, validationFailed([]services.ValidationItem{{
			Location: services.LocationHeaders,
			Msg:      msgNotModified,
			Param:    services.RequestIDHeader,
			Value:    r.Header.Get(services.RequestIDHeader),
		}}))

	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, fail(notFound.Error()))

	case errors.Is(err, services.ErrConcurrentModification):
		writeJSON(w, http.StatusBadRequest, fail(msgConflict))

	case errors.Is(err, services.ErrPipelineInProgress):
		writeJSON(w, http.StatusBadRequest, fail(msgInProgress))

	default:
		getLog().Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, internalError())
	}
}
