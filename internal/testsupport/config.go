// Package testsupport provides shared fixtures for package tests: temp-dir
// configs and opened database handles with cleanup registered.
package testsupport

import (
	"path/filepath"
	"testing"

	"chaptercast/internal/config"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.RetryBaseDelaySeconds = 1
	return &cfg
}
