package pipeline

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"chaptercast/internal/config"
	"chaptercast/internal/locks"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/retry"
	"chaptercast/internal/services/converter"
	"chaptercast/internal/services/scraper"
	"chaptercast/internal/services/syncer"
	"chaptercast/internal/services/tts"
)

// PageSource fetches and parses source site pages.
type PageSource interface {
	FetchBook(ctx context.Context, url string) (*scraper.BookListing, error)
	FetchChapter(ctx context.Context, url string) (*scraper.ChapterContent, error)
	FetchMetadata(ctx context.Context, url string) (*scraper.Metadata, error)
	DownloadCover(ctx context.Context, url, dest string) error
}

// SpeechSynthesizer turns chapter text into speech audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, textPath, audioPath string) error
}

// MediaConverter muxes audio, cover, and subtitles into the final container.
type MediaConverter interface {
	Convert(ctx context.Context, req converter.Request) error
	Duration(path string) (time.Duration, error)
}

// LibraryPusher transfers finished artifacts to the remote library.
type LibraryPusher interface {
	Push(ctx context.Context, sources []string) error
}

// Env bundles the shared infrastructure and collaborators every stage handler
// works against.
type Env struct {
	Cfg    *config.Config
	Store  *records.Store
	Broker *queue.Broker
	Locks  *locks.Manager
	Layout records.Layout
	Policy retry.Policy
	Source PageSource
	Speech SpeechSynthesizer
	Media  MediaConverter
	Pusher LibraryPusher
	Logger *slog.Logger
}

// NewEnv wires the production collaborators around an open database handle.
func NewEnv(cfg *config.Config, db *sql.DB, logger *slog.Logger) *Env {
	return &Env{
		Cfg:    cfg,
		Store:  records.NewStore(db),
		Broker: queue.NewBroker(db),
		Locks:  locks.NewManager(db),
		Layout: records.NewLayout(cfg.Paths.StagingDir),
		Policy: PolicyFromConfig(cfg),
		Source: scraper.NewClient(cfg.Scraper, logger),
		Speech: tts.NewSynthesizer(cfg.TTS, logger),
		Media:  converter.NewConverter(cfg.Converter, logger),
		Pusher: syncer.NewPusher(cfg.Sync, logger),
		Logger: logger,
	}
}

// PolicyFromConfig derives the retry policy from the workflow config section.
func PolicyFromConfig(cfg *config.Config) retry.Policy {
	return retry.Policy{
		BaseDelay:   time.Duration(cfg.Workflow.RetryBaseDelaySeconds) * time.Second,
		MaxDelay:    time.Duration(cfg.Workflow.RetryMaxDelaySeconds) * time.Second,
		MaxAttempts: cfg.Workflow.RetryMaxAttempts,
	}
}
