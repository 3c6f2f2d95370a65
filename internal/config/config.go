// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatabaseConfig holds all database configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"`
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// TemporalConfig holds Temporal-related configuration.
type TemporalConfig struct {
	HostPort  string          `mapstructure:"host_port"`
	Namespace string          `mapstructure:"namespace"`
	TaskQueue string          `mapstructure:"task_queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Activity  ActivityOptions `mapstructure:"activity"`
	Workflow  WorkflowOptions `mapstructure:"workflow"`
}

// WorkerConfig holds Temporal worker configuration.
type WorkerConfig struct {
	MaxConcurrentActivityExecutions int     `mapstructure:"max_concurrent_activities"`
	MaxConcurrentWorkflows          int     `mapstructure:"max_concurrent_workflows"`
	ActivitiesPerSecond             float64 `mapstructure:"activities_per_second"`
}

// ActivityOptions holds common activity options.
type ActivityOptions struct {
	StartToCloseTimeout    time.Duration `mapstructure:"start_to_close_timeout"`
	ScheduleToCloseTimeout time.Duration `mapstructure:"schedule_to_close_timeout"`
	HeartbeatTimeout       time.Duration `mapstructure:"heartbeat_timeout"`
	RetryPolicy            RetryPolicy   `mapstructure:"retry_policy"`
}

// RetryPolicy defines retry behavior for activities.
type RetryPolicy struct {
	InitialInterval    time.Duration `mapstructure:"initial_interval"`
	BackoffCoefficient float64       `mapstructure:"backoff_coefficient"`
	MaximumInterval    time.Duration `mapstructure:"maximum_interval"`
	MaximumAttempts    int32         `mapstructure:"maximum_attempts"`
}

// WorkflowOptions holds common workflow options.
type WorkflowOptions struct {
	WorkflowExecutionTimeout time.Duration `mapstructure:"workflow_execution_timeout"`
	WorkflowRunTimeout       time.Duration `mapstructure:"workflow_run_timeout"`
	WorkflowTaskTimeout      time.Duration `mapstructure:"workflow_task_timeout"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// AuthConfig controls how the operator of a request is identified.
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`     // HMAC key for bearer tokens; empty disables verification
	JWTIssuer     string `mapstructure:"jwt_issuer"`     // Expected "iss" claim when set
	OperatorClaim string `mapstructure:"operator_claim"` // Claim holding the operator identity
}

// WorkflowConfig holds pipeline provisioning settings.
type WorkflowConfig struct {
	StackPrefix        string        `mapstructure:"stack_prefix"`
	TemplatesFile      string        `mapstructure:"templates_file"`
	TokenRetention     time.Duration `mapstructure:"token_retention"`
	StatusRefreshLimit int           `mapstructure:"status_refresh_limit"` // Concurrent status queries per list request
	StackPollInterval  time.Duration `mapstructure:"stack_poll_interval"`
	StackTimeout       time.Duration `mapstructure:"stack_timeout"`
	SupportedRegions   []string      `mapstructure:"supported_regions"`
}

// AWSConfig holds credentials-free settings for the cloud SDK clients.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Profile  string `mapstructure:"profile"`
	Endpoint string `mapstructure:"endpoint"` // Override for local emulators
}

// TelemetryConfig holds tracing and metrics configuration.
type TelemetryConfig struct {
	ServiceName    string  `mapstructure:"service_name"`
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
}

// SupportedRegions lists the regions pipelines can be deployed to.
var SupportedRegions = []string{
	"us-east-1",
	"us-east-2",
	"us-west-1",
	"us-west-2",
	"ap-east-1",
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-northeast-3",
	"ap-south-1",
	"ap-southeast-1",
	"ap-southeast-2",
	"ca-central-1",
	"eu-central-1",
	"eu-north-1",
	"eu-west-1",
	"eu-west-2",
	"eu-west-3",
	"sa-east-1",
	"af-south-1",
	"ap-southeast-3",
	"eu-central-2",
	"eu-south-1",
	"me-central-1",
	"me-south-1",
	"cn-north-1",
	"cn-northwest-1",
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/clickstream/")
		v.AddConfigPath("$HOME/.clickstream")
	}

	v.SetEnvPrefix("CLICKSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath != "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Values from the file or environment overwrite the defaults.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnvKeys registers the keys that are commonly overridden from the
// environment. AutomaticEnv alone only resolves keys viper already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"database.driver", "database.host", "database.port", "database.username",
		"database.password", "database.database", "database.ssl_mode",
		"log.level", "log.format",
		"temporal.host_port", "temporal.namespace", "temporal.task_queue",
		"server.host", "server.port", "server.allowed_origins",
		"auth.jwt_secret", "auth.jwt_issuer",
		"workflow.stack_prefix", "workflow.templates_file",
		"aws.region", "aws.profile", "aws.endpoint",
		"telemetry.tracing_enabled", "telemetry.otlp_endpoint", "telemetry.metrics_enabled",
	} {
		_ = v.BindEnv(key)
	}
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Database: "clickstream.db",
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
			Output: []LogOutputConfig{
				{
					Type:    "console",
					Enabled: true,
				},
				{
					Type:    "file",
					Enabled: false,
					Path:    "./logs/clickstream.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
			},
			Levels: map[string]string{
				"orchestrator": "INFO",
				"temporal":     "WARN",
				"database":     "INFO",
				"api":          "INFO",
				"cloud":        "INFO",
				"poller":       "INFO",
			},
			Context: LogContextConfig{
				IncludeCaller:     false,
				IncludeTimestamp:  true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "clickstream-stack-queue",
			Worker: WorkerConfig{
				MaxConcurrentActivityExecutions: 20,
				MaxConcurrentWorkflows:          50,
				ActivitiesPerSecond:             100,
			},
			Activity: ActivityOptions{
				StartToCloseTimeout:    time.Hour,
				ScheduleToCloseTimeout: 3 * time.Hour,
				HeartbeatTimeout:       time.Minute,
				RetryPolicy: RetryPolicy{
					InitialInterval:    10 * time.Second,
					BackoffCoefficient: 2.0,
					MaximumInterval:    5 * time.Minute,
					MaximumAttempts:    3,
				},
			},
			Workflow: WorkflowOptions{
				WorkflowExecutionTimeout: 12 * time.Hour,
				WorkflowRunTimeout:       12 * time.Hour,
				WorkflowTaskTimeout:      10 * time.Second,
			},
		},
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8080,
			MaxBodyBytes:  1 << 20,
			ShutdownGrace: 15 * time.Second,
		},
		Auth: AuthConfig{
			OperatorClaim: "email",
		},
		Workflow: WorkflowConfig{
			StackPrefix:        "clickstream",
			TokenRetention:     24 * time.Hour,
			StatusRefreshLimit: 8,
			StackPollInterval:  15 * time.Second,
			StackTimeout:       time.Hour,
			SupportedRegions:   append([]string(nil), SupportedRegions...),
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "clickstream-control-plane",
			TracingEnabled: false,
			OTLPEndpoint:   "localhost:4318",
			SampleRatio:    1.0,
			MetricsEnabled: true,
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values
func (c *AppConfig) expandPaths() {
	if c.Workflow.TemplatesFile != "" {
		c.Workflow.TemplatesFile = expandPath(c.Workflow.TemplatesFile)
	}
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	case "":
		return errors.New("database driver is required")
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Temporal.TaskQueue == "" {
		return errors.New("temporal.task_queue is required")
	}

	if c.Workflow.StackPrefix == "" {
		return errors.New("workflow.stack_prefix is required")
	}
	if c.Workflow.TokenRetention <= 0 {
		return fmt.Errorf("workflow.token_retention must be positive, got: %s", c.Workflow.TokenRetention)
	}
	if len(c.Workflow.SupportedRegions) == 0 {
		return errors.New("workflow.supported_regions must not be empty")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1], got: %v", c.Telemetry.SampleRatio)
	}

	return nil
}

// GetDSN returns the database connection string.
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite":
		dsn := dc.Database
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		return dsn
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
	default:
		return dc.Database
	}
}

// IsSupportedRegion reports whether region is in the configured region list.
func (wc *WorkflowConfig) IsSupportedRegion(region string) bool {
	for _, r := range wc.SupportedRegions {
		if r == region {
			return true
		}
	}
	return false
}
