// Package tts synthesizes chapter text into speech audio by invoking the
// configured synthesizer binary.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/services"
)

// Synthesizer runs the external text-to-speech command.
type Synthesizer struct {
	command string
	voice   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewSynthesizer builds a Synthesizer from the tts config section.
func NewSynthesizer(cfg config.TTS, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		command: cfg.Command,
		voice:   cfg.Voice,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:  logging.WithComponent(logger, "tts"),
	}
}

// Synthesize reads chapter text from textPath and writes speech audio to
// audioPath. The text streams to the synthesizer on stdin.
func (s *Synthesizer) Synthesize(ctx context.Context, textPath, audioPath string) error {
	if s.command == "" {
		return services.Wrap(services.ErrConfiguration, "synthesize", "", "tts command not configured", nil)
	}
	text, err := os.ReadFile(textPath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "synthesize", "read text", textPath, err)
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return services.Wrap(services.ErrValidation, "synthesize", "read text",
			fmt.Sprintf("empty chapter text at %s", textPath), nil)
	}
	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "synthesize", "prepare output dir", "", err)
	}

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{"--output_file", audioPath}
	if s.voice != "" {
		args = append(args, "--model", s.voice)
	}
	cmd := exec.CommandContext(runCtx, s.command, args...)
	cmd.Stdin = bytes.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	s.logger.Info("synthesis started",
		slog.String("input", textPath),
		slog.String("output", audioPath))
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesize", s.command,
			firstLine(stderr.String()), err)
	}
	s.logger.Info("synthesis complete",
		slog.String("output", audioPath),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
