// Command chaptercastd runs the processing daemon directly, without the CLI
// wrapper. It is the entrypoint used by service managers; interactive use
// goes through "chaptercast serve".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chaptercast/internal/config"
	"chaptercast/internal/daemon"
	"chaptercast/internal/logging"
	"chaptercast/internal/pipeline"
	"chaptercast/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chaptercastd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, _, _, err := config.Load(os.Getenv("CHAPTERCAST_CONFIG"))
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "chaptercast.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	d, err := daemon.New(cfg, db, pipeline.NewEnv(cfg, db, logger), logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
