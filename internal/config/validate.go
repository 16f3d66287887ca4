package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if c.Scraper.RequestTimeout <= 0 {
		problems = append(problems, "scraper.request_timeout must be positive")
	}
	if c.Scraper.FetchAttempts <= 0 {
		problems = append(problems, "scraper.fetch_attempts must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		problems = append(problems, "workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.TaskLeaseSeconds <= 0 {
		problems = append(problems, "workflow.task_lease_seconds must be positive")
	}
	if c.Workflow.RetryBaseDelaySeconds <= 0 {
		problems = append(problems, "workflow.retry_base_delay_seconds must be positive")
	}
	if c.Workflow.RetryMaxAttempts < 0 {
		problems = append(problems, "workflow.retry_max_attempts must not be negative")
	}
	if c.Sync.Enabled {
		if strings.TrimSpace(c.Sync.Destination) == "" {
			problems = append(problems, "sync.destination required when sync is enabled")
		}
		if c.Sync.LockTTLSeconds <= c.Sync.TimeoutSeconds {
			problems = append(problems, "sync.lock_ttl_seconds must exceed sync.timeout_seconds")
		}
	}
	if c.Sync.ContentionDelaySeconds <= 0 {
		problems = append(problems, "sync.contention_delay_seconds must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q not recognized", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
