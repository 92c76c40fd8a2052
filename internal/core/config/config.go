package config

import (
	"time"

	"github.com/vietddude/batcher/internal/infra/storage/local"
	"github.com/vietddude/batcher/internal/infra/storage/postgres"
	redisbackend "github.com/vietddude/batcher/internal/infra/storage/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig   `yaml:"server"`
	Logging   LoggingConfig  `yaml:"logging"`
	Storage   StorageConfig  `yaml:"storage"`
	Batch     BatchConfig    `yaml:"batch"`
	Analysis  AnalysisConfig `yaml:"analysis"`
	Retention string         `yaml:"retention"` // e.g. "168h"; 0 disables purging
}

// ServerConfig holds health/metrics server settings. Port 0 disables it.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// StorageConfig selects and configures the checkpoint backend.
type StorageConfig struct {
	Type     string              `yaml:"type"` // local, redis, postgres, memory
	Local    local.Config        `yaml:"local"`
	Redis    redisbackend.Config `yaml:"redis"`
	Postgres postgres.Config     `yaml:"postgres"`
}

// BatchConfig holds scheduler and retry tuning. Delays are duration
// strings ("2s", "1m30s").
type BatchConfig struct {
	Concurrency     int    `yaml:"concurrency"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	MaxAttempts     int    `yaml:"max_attempts"`
	BaseDelay       string `yaml:"base_delay"`
	MaxDelay        string `yaml:"max_delay"`
}

// AnalysisConfig holds settings for the AI analysis collaborator.
// Credentials are injected here; nothing below the CLI reads process
// environment directly.
type AnalysisConfig struct {
	Model           string `yaml:"model"`
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	MaxContentChars int    `yaml:"max_content_chars"`
}

// ParseDuration parses a duration string, falling back when empty or
// malformed.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// RetentionPeriod returns the configured checkpoint retention window.
func (c *AppConfig) RetentionPeriod() time.Duration {
	return ParseDuration(c.Retention, 7*24*time.Hour)
}
