// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noldarim/clickstream/internal/orchestrator/models"

	"gorm.io/gorm"
)

// GetPipeline retrieves the live record of a pipeline. Returns (nil, nil) when
// the pipeline does not exist or has been deleted.
func (db *GormDB) GetPipeline(ctx context.Context, projectID, pipelineID string) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := db.db.WithContext(ctx).
		Where("project_id = ? AND type = ? AND deleted = ?",
			projectID, models.PipelineType(pipelineID, models.LatestVersionTag), false).
		First(&pipeline).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pipeline, nil
}

// ListPipelines returns non-deleted pipelines carrying versionTag, newest first.
// An empty projectID lists across all projects.
func (db *GormDB) ListPipelines(ctx context.Context, projectID, versionTag string) ([]*models.Pipeline, error) {
	if versionTag == "" {
		versionTag = models.LatestVersionTag
	}

	query := db.db.WithContext(ctx).Where("deleted = ? AND version_tag = ?", false, versionTag)
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}

	var pipelines []*models.Pipeline
	if err := query.Order("create_at DESC").Find(&pipelines).Error; err != nil {
		return nil, err
	}
	return pipelines, nil
}

// CreatePipeline inserts the live record of a new pipeline.
func (db *GormDB) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	pipeline.VersionTag = models.LatestVersionTag
	pipeline.Type = models.PipelineType(pipeline.PipelineID, models.LatestVersionTag)
	return classify(db.db.WithContext(ctx).Create(pipeline).Error)
}

// ConditionalWritePipeline replaces the live record of a pipeline only if its
// stored version still equals expectedVersion. In the same transaction the
// superseded record is kept as a snapshot tagged with expectedVersion.
//
// Returns ErrConcurrentModification when the version check fails. The stored
// record is left untouched in that case.
func (db *GormDB) ConditionalWritePipeline(ctx context.Context, expectedVersion string, pipeline *models.Pipeline) error {
	latestType := models.PipelineType(pipeline.PipelineID, models.LatestVersionTag)
	pipeline.Type = latestType
	pipeline.VersionTag = models.LatestVersionTag

	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Pipeline
		err := tx.Where("project_id = ? AND type = ? AND deleted = ?", pipeline.ProjectID, latestType, false).
			First(&current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: pipeline %s", ErrNotFound, pipeline.PipelineID)
			}
			return err
		}
		if current.Version != expectedVersion {
			return fmt.Errorf("%w: pipeline %s is at version %s, not %s",
				ErrConcurrentModification, pipeline.PipelineID, current.Version, expectedVersion)
		}

		snapshot := current
		snapshot.Type = models.PipelineType(current.PipelineID, expectedVersion)
		snapshot.VersionTag = expectedVersion
		if err := tx.Create(&snapshot).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("%w: version %s already superseded", ErrConcurrentModification, expectedVersion)
			}
			return err
		}

		result := tx.Model(&models.Pipeline{}).
			Where("project_id = ? AND type = ? AND version = ? AND deleted = ?",
				pipeline.ProjectID, latestType, expectedVersion, false).
			Select("*").
			Omit("project_id", "type", "prefix", "create_at").
			Updates(pipeline)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: pipeline %s", ErrConcurrentModification, pipeline.PipelineID)
		}
		return nil
	})
	return classify(err)
}

// UpdatePipelineStatus sets the status of the live record if it is still at
// version. The version stamp is not bumped.
func (db *GormDB) UpdatePipelineStatus(ctx context.Context, projectID, pipelineID, version string, status models.PipelineStatus) error {
	result := db.db.WithContext(ctx).Model(&models.Pipeline{}).
		Where("project_id = ? AND type = ? AND version = ? AND deleted = ?",
			projectID, models.PipelineType(pipelineID, models.LatestVersionTag), version, false).
		Updates(map[string]any{
			"status":    status,
			"update_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: pipeline %s", ErrConcurrentModification, pipelineID)
	}
	return nil
}

// DeletePipeline soft deletes a pipeline together with every snapshot row it
// owns. Rows are enumerated and updated one by one; the live row also moves to
// the Deleted status. Returns the number of rows marked.
func (db *GormDB) DeletePipeline(ctx context.Context, projectID, pipelineID, operator string) (int, error) {
	marked := 0
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.Pipeline
		if err := tx.Where("project_id = ? AND type LIKE ?", projectID, models.PipelineTypePrefix(pipelineID)+"%").
			Find(&rows).Error; err != nil {
			return err
		}

		now := time.Now().UnixMilli()
		for _, row := range rows {
			if row.Deleted {
				continue
			}
			updates := map[string]any{
				"deleted":   true,
				"operator":  operator,
				"update_at": now,
			}
			if row.VersionTag == models.LatestVersionTag {
				updates["status"] = models.PipelineStatusDeleted
			}
			if err := tx.Model(&models.Pipeline{}).
				Where("project_id = ? AND type = ?", row.ProjectID, row.Type).
				Updates(updates).Error; err != nil {
				return err
			}
			marked++
		}
		if marked == 0 {
			return fmt.Errorf("%w: pipeline %s", ErrNotFound, pipelineID)
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}
	return marked, nil
}
