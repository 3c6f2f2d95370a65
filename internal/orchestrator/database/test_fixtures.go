// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/orchestrator/models"
)

// DatabaseFixture is a migrated store closed automatically when the test ends.
type DatabaseFixture struct {
	DB *GormDB
}

// FixtureOption adjusts the store a fixture creates.
type FixtureOption func(t *testing.T, cfg *config.DatabaseConfig, seed *fixtureSeed)

type fixtureSeed struct {
	projects  []*models.Project
	pipelines []*models.Pipeline
}

// OnDisk backs the fixture with a SQLite file in the test's temp dir instead
// of shared memory.
func OnDisk() FixtureOption {
	return func(t *testing.T, cfg *config.DatabaseConfig, _ *fixtureSeed) {
		cfg.Database = filepath.Join(t.TempDir(), "clickstream.db")
	}
}

// WithProjects inserts projects once the schema is migrated.
func WithProjects(projects ...*models.Project) FixtureOption {
	return func(_ *testing.T, _ *config.DatabaseConfig, seed *fixtureSeed) {
		seed.projects = append(seed.projects, projects...)
	}
}

// WithPipelines inserts pipeline version records once the schema is migrated.
func WithPipelines(pipelines ...*models.Pipeline) FixtureOption {
	return func(_ *testing.T, _ *config.DatabaseConfig, seed *fixtureSeed) {
		seed.pipelines = append(seed.pipelines, pipelines...)
	}
}

// UseFreshInMemoryDatabase opens a private SQLite store with the schema
// migrated. Every call gets its own database.
func UseFreshInMemoryDatabase(t *testing.T, opts ...FixtureOption) *DatabaseFixture {
	t.Helper()
	cfg := WithInMemoryConfig().Database
	var seed fixtureSeed
	for _, opt := range opts {
		opt(t, &cfg, &seed)
	}

	db, err := NewGormDB(&cfg)
	require.NoError(t, err, "open test store")
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate(), "migrate test store")

	ctx := context.Background()
	for _, project := range seed.projects {
		require.NoError(t, db.CreateProject(ctx, project), "seed project %s", project.ID)
	}
	for _, pipeline := range seed.pipelines {
		require.NoError(t, db.CreatePipeline(ctx, pipeline), "seed pipeline %s@%s", pipeline.PipelineID, pipeline.Version)
	}
	return &DatabaseFixture{DB: db}
}

// WithInMemoryConfig points the store at a uniquely named shared-cache
// in-memory SQLite database.
func WithInMemoryConfig() *config.AppConfig {
	return &config.AppConfig{
		Database: config.DatabaseConfig{
			Driver:   "sqlite",
			Database: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		},
	}
}
