// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noldarim/clickstream/internal/config"
	applog "github.com/noldarim/clickstream/internal/logger"
	"github.com/noldarim/clickstream/internal/orchestrator/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDB wraps the GORM database connection
type GormDB struct {
	db *gorm.DB
}

// NewGormDB creates a new GORM database connection
func NewGormDB(cfg *config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite serialises writers; a single connection also keeps in-memory databases alive.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	dbLog := applog.GetDatabaseLogger()
	dbLog.Debug().Str("driver", cfg.Driver).Msg("Database connection opened")
	return &GormDB{db: db}, nil
}

// AutoMigrate runs database migrations
func (db *GormDB) AutoMigrate() error {
	if err := db.db.AutoMigrate(
		&models.Project{},
		&models.Pipeline{},
		&models.RequestToken{},
		&models.Dictionary{},
	); err != nil {
		return err
	}
	dbLog := applog.GetDatabaseLogger()
	dbLog.Info().Msg("Database schema migrated")
	return nil
}

// ValidateSchema checks if GORM models match the database schema
func (db *GormDB) ValidateSchema() error {
	var missingTables []string
	var missingColumns []string

	tables := []struct {
		model   any
		name    string
		columns []string
	}{
		{&models.Project{}, "projects", []string{"id", "name", "region", "pipeline_id", "deleted", "operator", "create_at", "update_at"}},
		{&models.Pipeline{}, "pipelines", []string{
			"project_id", "type", "pipeline_id", "status", "ingestion_server", "etl", "data_model",
			"execution_arn", "version", "version_tag", "deleted", "operator",
		}},
		{&models.RequestToken{}, "request_tokens", []string{"operation", "token", "expire_at"}},
		{&models.Dictionary{}, "dictionaries", []string{"name", "data"}},
	}

	for _, table := range tables {
		if !db.db.Migrator().HasTable(table.model) {
			missingTables = append(missingTables, table.name)
			continue
		}
		for _, col := range table.columns {
			if !db.db.Migrator().HasColumn(table.model, col) {
				missingColumns = append(missingColumns, fmt.Sprintf("%s.%s", table.name, col))
			}
		}
	}

	if len(missingTables) > 0 {
		return fmt.Errorf("missing tables: %v\n\n💡 Run 'clickstream migrate' to create the required tables", missingTables)
	}
	if len(missingColumns) > 0 {
		return fmt.Errorf("missing columns: %v\n\n💡 Run 'clickstream migrate' to add the required columns", missingColumns)
	}

	return nil
}

// Close closes the database connection
func (db *GormDB) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListProjects returns every non-deleted project ordered by creation time.
// order is "asc" or "desc"; anything else is treated as "desc".
func (db *GormDB) ListProjects(ctx context.Context, order string) ([]*models.Project, error) {
	direction := "DESC"
	if strings.EqualFold(order, "asc") {
		direction = "ASC"
	}

	var projects []*models.Project
	err := db.db.WithContext(ctx).
		Where("deleted = ?", false).
		Order("create_at " + direction).
		Find(&projects).Error
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject retrieves a non-deleted project. Returns (nil, nil) when absent.
func (db *GormDB) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	err := db.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", projectID, false).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &project, nil
}

// CreateProject inserts a project. The name must be unique among live projects.
func (db *GormDB) CreateProject(ctx context.Context, project *models.Project) error {
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Project{}).
			Where("name = ? AND deleted = ?", project.Name, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: project name %q", ErrDuplicate, project.Name)
		}
		return tx.Create(project).Error
	})
	return classify(err)
}

// UpdateProject writes the editable project fields.
func (db *GormDB) UpdateProject(ctx context.Context, project *models.Project) error {
	result := db.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND deleted = ?", project.ID, false).
		Updates(map[string]any{
			"name":        project.Name,
			"description": project.Description,
			"emails":      project.Emails,
			"platform":    project.Platform,
			"region":      project.Region,
			"environment": project.Environment,
			"tags":        project.Tags,
			"operator":    project.Operator,
			"update_at":   time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, project.ID)
	}
	return nil
}

// SetProjectPipeline points the project at its current pipeline ("" clears it).
func (db *GormDB) SetProjectPipeline(ctx context.Context, projectID, pipelineID string) error {
	return db.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND deleted = ?", projectID, false).
		Updates(map[string]any{
			"pipeline_id": pipelineID,
			"update_at":   time.Now().UnixMilli(),
		}).Error
}

// DeleteProject soft deletes a project, recording who deleted it and when.
func (db *GormDB) DeleteProject(ctx context.Context, projectID, operator string) error {
	result := db.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND deleted = ?", projectID, false).
		Updates(map[string]any{
			"deleted":   true,
			"operator":  operator,
			"update_at": time.Now().UnixMilli(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: project %s", ErrNotFound, projectID)
	}
	return nil
}
