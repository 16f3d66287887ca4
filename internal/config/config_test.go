package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chaptercast/internal/config"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, path, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config to report exists=false")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Workflow.RetryMaxAttempts != 5 {
		t.Fatalf("expected default retry cap 5, got %d", cfg.Workflow.RetryMaxAttempts)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected default log format %q", cfg.Logging.Format)
	}
}

func TestLoadParsesAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
staging_dir = "` + filepath.Join(dir, "staging") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[workflow]
retry_max_attempts = 2
retry_base_delay_seconds = 1
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Workflow.RetryMaxAttempts != 2 {
		t.Fatalf("expected retry cap 2, got %d", cfg.Workflow.RetryMaxAttempts)
	}
	if !filepath.IsAbs(cfg.Paths.StagingDir) {
		t.Fatalf("expected absolute staging dir, got %q", cfg.Paths.StagingDir)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.QueuePollInterval = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "queue_poll_interval") {
		t.Fatalf("unexpected validation message: %v", err)
	}
}

func TestValidateSyncLockTTL(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.Enabled = true
	cfg.Sync.Destination = "user@host:/srv/books/"
	cfg.Sync.TimeoutSeconds = 600
	cfg.Sync.LockTTLSeconds = 600
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected lock TTL validation error when ttl <= timeout")
	}
	cfg.Sync.LockTTLSeconds = 900
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}
