// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package services

import (
	"context"
	"fmt"
)

// RefKind is the kind of record a request parameter points at.
type RefKind int

const (
	RefProject RefKind = iota
	RefPipeline
)

// Ref ties a request parameter to the record it must name.
// Pipeline refs need both ProjectID and PipelineID.
type Ref struct {
	Param      string
	Location   string
	Kind       RefKind
	ProjectID  string
	PipelineID string
}

// ProjectRef is a reference to a project named by param at location.
func ProjectRef(location, param, projectID string) Ref {
	return Ref{Param: param, Location: location, Kind: RefProject, ProjectID: projectID}
}

// PipelineRef is a reference to a pipeline of projectID named by param at location.
func PipelineRef(location, param, projectID, pipelineID string) Ref {
	return Ref{Param: param, Location: location, Kind: RefPipeline, ProjectID: projectID, PipelineID: pipelineID}
}

// ResourceValidator confirms that referenced records exist and are not deleted.
type ResourceValidator struct {
	store Store
}

// NewResourceValidator creates a validator reading from store.
func NewResourceValidator(store Store) *ResourceValidator {
	return &ResourceValidator{store: store}
}

// Check looks up every ref and reports all missing ones in one
// ValidationError. Project refs are checked first; a pipeline ref whose
// project is already reported missing is not looked up. Store failures abort
// the check.
func (v *ResourceValidator) Check(ctx context.Context, refs ...Ref) error {
	verr := &ValidationError{}
	missingProjects := map[string]bool{}

	for _, ref := range refs {
		if ref.Kind != RefProject {
			continue
		}
		project, err := v.store.GetProject(ctx, ref.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to check project %s: %w", ref.ProjectID, err)
		}
		if project == nil {
			missingProjects[ref.ProjectID] = true
			verr.Add(ref.Location, ref.Param, "Project resource does not exist.", ref.ProjectID)
		}
	}

	for _, ref := range refs {
		switch ref.Kind {
		case RefProject:
			continue

		case RefPipeline:
			if missingProjects[ref.ProjectID] {
				continue
			}
			pipeline, err := v.store.GetPipeline(ctx, ref.ProjectID, ref.PipelineID)
			if err != nil {
				return fmt.Errorf("failed to check pipeline %s: %w", ref.PipelineID, err)
			}
			if pipeline == nil {
				verr.Add(ref.Location, ref.Param, "Pipeline resource does not exist.", ref.PipelineID)
			}

		default:
			return fmt.Errorf("unknown reference kind %d for %s", ref.Kind, ref.Param)
		}
	}

	return verr.ErrOrNil()
}
