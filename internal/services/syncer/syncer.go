// Package syncer pushes finished book artifacts to the remote library with
// rsync over ssh.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/services"
)

// Pusher runs rsync.
type Pusher struct {
	destination string
	sshKeyPath  string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewPusher builds a Pusher from the sync config section.
func NewPusher(cfg config.Sync, logger *slog.Logger) *Pusher {
	return &Pusher{
		destination: cfg.Destination,
		sshKeyPath:  cfg.SSHKeyPath,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:      logging.WithComponent(logger, "syncer"),
	}
}

// Push transfers the given source paths to the configured destination.
// Sources that do not exist yet are skipped; pushing with nothing to send is
// not an error.
func (p *Pusher) Push(ctx context.Context, sources []string) error {
	if p.destination == "" {
		return services.Wrap(services.ErrConfiguration, "sync", "", "destination not configured", nil)
	}

	existing := make([]string, 0, len(sources))
	for _, src := range sources {
		if _, err := os.Stat(src); err == nil {
			existing = append(existing, src)
		}
	}
	if len(existing) == 0 {
		p.logger.Warn("nothing to sync", slog.Any("sources", sources))
		return nil
	}

	args := []string{"-az", "--update"}
	if p.sshKeyPath != "" {
		args = append(args, "-e",
			fmt.Sprintf("ssh -i %s -o StrictHostKeyChecking=no -o UserKnownHostsFile=/dev/null", p.sshKeyPath))
	}
	args = append(args, existing...)
	args = append(args, p.destination)

	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "rsync", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	p.logger.Info("sync started",
		slog.Int("sources", len(existing)),
		slog.String("destination", p.destination))
	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTransient, "sync", "rsync", "transfer timed out", err)
		}
		return services.Wrap(services.ErrExternalTool, "sync", "rsync",
			lastLine(stderr.String()), err)
	}
	p.logger.Info("sync complete",
		slog.String("destination", p.destination),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}
	return s[start:end]
}
