// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "clickstream-stack-queue", cfg.Temporal.TaskQueue)
	assert.Equal(t, 24*time.Hour, cfg.Workflow.TokenRetention)
	assert.Len(t, cfg.Workflow.SupportedRegions, 26)
	assert.Equal(t, "email", cfg.Auth.OperatorClaim)
}

func TestNewConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  driver: postgres
  host: db.internal
  database: clickstream
  username: cs
  password: secret
server:
  port: 9000
  allowed_origins: "https://console.example.com,https://admin.example.com"
workflow:
  stack_prefix: cs
  token_retention: 2h
temporal:
  activity:
    heartbeat_timeout: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CLICKSTREAM_SERVER_PORT", "9100")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 9100, cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, []string{"https://console.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "cs", cfg.Workflow.StackPrefix)
	assert.Equal(t, 2*time.Hour, cfg.Workflow.TokenRetention)
	assert.Equal(t, 45*time.Second, cfg.Temporal.Activity.HeartbeatTimeout)
	assert.Equal(t, "host=db.internal port=5432 user=cs password=secret dbname=clickstream sslmode=disable", cfg.Database.GetDSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"defaults are valid", func(*AppConfig) {}, ""},
		{"unknown driver", func(c *AppConfig) { c.Database.Driver = "mysql" }, "unsupported database driver"},
		{"missing driver", func(c *AppConfig) { c.Database.Driver = "" }, "database driver is required"},
		{"bad log level", func(c *AppConfig) { c.Log.Level = "LOUD" }, "invalid log level"},
		{"bad port", func(c *AppConfig) { c.Server.Port = 70000 }, "invalid server port"},
		{"no task queue", func(c *AppConfig) { c.Temporal.TaskQueue = "" }, "temporal.task_queue"},
		{"no regions", func(c *AppConfig) { c.Workflow.SupportedRegions = nil }, "supported_regions"},
		{"bad sample ratio", func(c *AppConfig) { c.Telemetry.SampleRatio = 2 }, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDSN_SQLiteMemory(t *testing.T) {
	dc := DatabaseConfig{Driver: "sqlite", Database: ":memory:"}
	assert.Equal(t, "file::memory:?cache=shared", dc.GetDSN())

	dc.Database = "clickstream.db"
	assert.Equal(t, "clickstream.db", dc.GetDSN())
}

func TestIsSupportedRegion(t *testing.T) {
	cfg := defaultConfig()
	assert.True(t, cfg.Workflow.IsSupportedRegion("us-east-1"))
	assert.True(t, cfg.Workflow.IsSupportedRegion("cn-northwest-1"))
	assert.False(t, cfg.Workflow.IsSupportedRegion("mars-north-1"))
}
