package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test-123")

	path := writeConfig(t, `
analysis:
  api_key: ${TEST_ANTHROPIC_KEY}
storage:
  type: redis
  redis:
    url: redis://localhost:6379/0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Analysis.APIKey != "sk-test-123" {
		t.Errorf("expected expanded api key, got %q", cfg.Analysis.APIKey)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("unexpected storage config: %+v", cfg.Storage)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `server:
  port: 9090
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Type != "local" || cfg.Storage.Local.Dir != "./storage" {
		t.Errorf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Batch.Concurrency != 2 || cfg.Batch.CheckpointEvery != 10 {
		t.Errorf("unexpected batch defaults: %+v", cfg.Batch)
	}
	if cfg.Batch.MaxAttempts != 7 || cfg.Batch.BaseDelay != "2s" || cfg.Batch.MaxDelay != "128s" {
		t.Errorf("unexpected retry defaults: %+v", cfg.Batch)
	}
	if cfg.RetentionPeriod() != 7*24*time.Hour {
		t.Errorf("unexpected retention default: %v", cfg.RetentionPeriod())
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("explicit port lost: %d", cfg.Server.Port)
	}
}

func TestLoad_BatchOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
batch:
  concurrency: 4
  checkpoint_every: 25
  max_attempts: 3
  base_delay: 1s
  max_delay: 30s
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Batch.Concurrency != 4 || cfg.Batch.CheckpointEvery != 25 {
		t.Errorf("overrides not applied: %+v", cfg.Batch)
	}
	if ParseDuration(cfg.Batch.BaseDelay, 0) != time.Second || ParseDuration(cfg.Batch.MaxDelay, 0) != 30*time.Second {
		t.Errorf("delay overrides not applied: %+v", cfg.Batch)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
