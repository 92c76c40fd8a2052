package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.Local.Dir == "" {
		cfg.Storage.Local.Dir = "./storage"
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = 2
	}
	if cfg.Batch.CheckpointEvery == 0 {
		cfg.Batch.CheckpointEvery = 10
	}
	if cfg.Batch.MaxAttempts == 0 {
		cfg.Batch.MaxAttempts = 7
	}
	if cfg.Batch.BaseDelay == "" {
		cfg.Batch.BaseDelay = "2s"
	}
	if cfg.Batch.MaxDelay == "" {
		cfg.Batch.MaxDelay = "128s"
	}
	if cfg.Analysis.Model == "" {
		cfg.Analysis.Model = "claude-sonnet-4-5"
	}
	if cfg.Analysis.MaxContentChars == 0 {
		cfg.Analysis.MaxContentChars = 4000
	}
	if cfg.Retention == "" {
		cfg.Retention = "168h"
	}
}
