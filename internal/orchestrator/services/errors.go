// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noldarim/clickstream/internal/orchestrator/database"
)

// Validation item locations, in the order items are reported.
const (
	LocationParams  = "params"
	LocationQuery   = "query"
	LocationBody    = "body"
	LocationHeaders = "headers"
)

// RequestIDHeader carries the client token used by the idempotency guard.
const RequestIDHeader = "x-click-stream-request-id"

var (
	// ErrConcurrentModification means the caller's version is stale.
	ErrConcurrentModification = database.ErrConcurrentModification
	// ErrRequestReplayed means the request token was already used for the operation.
	ErrRequestReplayed = errors.New("request already processed")
	// ErrPipelineInProgress means a workflow attempt is still running for the pipeline.
	ErrPipelineInProgress = errors.New("pipeline is in progress")
	// ErrActivePipelineExists means the project already owns a live pipeline.
	ErrActivePipelineExists = errors.New("project already has an active pipeline")
	// ErrTemplatesMissing means the Templates dictionary or a template in it is absent.
	ErrTemplatesMissing = errors.New("stack templates not configured")
)

// ValidationItem is one field level problem.
type ValidationItem struct {
	Location string      `json:"location"`
	Msg      string      `json:"msg"`
	Param    string      `json:"param"`
	Value    interface{} `json:"value,omitempty"`
}

// ValidationError carries every problem found in a request. Cause, when set,
// is the sentinel behind a single item rejection.
type ValidationError struct {
	Items []ValidationItem
	Cause error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		msgs = append(msgs, fmt.Sprintf("%s.%s: %s", it.Location, it.Param, it.Msg))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Add appends an item.
func (e *ValidationError) Add(location, param, msg string, value interface{}) {
	e.Items = append(e.Items, ValidationItem{Location: location, Msg: msg, Param: param, Value: value})
}

// Sort orders items by location (params, query, body, headers) and then by
// param name. Items sharing both keep their insertion order.
func (e *ValidationError) Sort() {
	sort.SliceStable(e.Items, func(i, j int) bool {
		li, lj := locationRank(e.Items[i].Location), locationRank(e.Items[j].Location)
		if li != lj {
			return li < lj
		}
		return e.Items[i].Param < e.Items[j].Param
	})
}

// ErrOrNil returns e sorted, or nil when it holds no items.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Items) == 0 {
		return nil
	}
	e.Sort()
	return e
}

func locationRank(location string) int {
	switch location {
	case LocationParams:
		return 0
	case LocationQuery:
		return 1
	case LocationBody:
		return 2
	case LocationHeaders:
		return 3
	default:
		return 4
	}
}

// NewValidationError builds a single item ValidationError.
func NewValidationError(location, param, msg string, value interface{}) *ValidationError {
	e := &ValidationError{}
	e.Add(location, param, msg, value)
	return e
}

// NotFoundError reports that a project or pipeline read found nothing.
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func projectNotFound(id string) error {
	return &NotFoundError{Resource: "project", ID: id, Message: "Project not found"}
}

func pipelineNotFound(id string) error {
	return &NotFoundError{Resource: "pipeline", ID: id, Message: "Pipeline not found"}
}
