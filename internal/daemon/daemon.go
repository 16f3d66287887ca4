package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/pipeline"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

// Daemon coordinates the pipeline workers and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	store    *records.Store
	broker   *queue.Broker
	manager  *pipeline.Manager
	api      *apiServer
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status is the daemon's runtime snapshot served by the introspection API.
type Status struct {
	Running      bool                  `json:"running"`
	DatabasePath string                `json:"database_path"`
	Chapters     map[stage.Status]int  `json:"chapters_by_status"`
	Queues       map[queue.Channel]int `json:"queue_depths"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, db *sql.DB, env *pipeline.Env, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || db == nil || env == nil || logger == nil {
		return nil, errors.New("daemon requires config, database, environment, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "chaptercastd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		db:       db,
		store:    env.Store,
		broker:   env.Broker,
		manager:  pipeline.NewManager(env),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock and launches the workers and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another chaptercast daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.manager.Start(runCtx)
	if err := d.api.start(runCtx); err != nil {
		d.manager.Stop()
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("daemon started", slog.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the workers and API server and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", slog.Any("error", err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the database.
func (d *Daemon) Close() error {
	d.Stop()
	return d.db.Close()
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound address of the introspection API, or "" when the
// API is disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status assembles the runtime snapshot.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	counts, err := d.store.ChapterCountsByStatus(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("chapter stats: %w", err)
	}
	depths, err := d.broker.Depths(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("queue depths: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		DatabasePath: d.cfg.DatabasePath(),
		Chapters:     counts,
		Queues:       depths,
	}, nil
}
