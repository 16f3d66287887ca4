package pipeline

import (
	"context"
	"log/slog"
	"time"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// completeHandler finalizes a chapter and schedules a library sync for its
// book. The sync task carries a settle delay so a burst of finishing chapters
// collapses into few transfers.
type completeHandler struct {
	env *Env
}

func (h *completeHandler) Channel() queue.Channel { return queue.ChannelComplete }
func (h *completeHandler) Kind() string           { return records.KindChapter }
func (h *completeHandler) Target() stage.Status   { return stage.StatusCompleted }

func (h *completeHandler) Execute(ctx context.Context, chapterID string) error {
	env := h.env

	chapter, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		return c.Advance(stage.StatusCompleted)
	})
	if err != nil {
		return storeErr("complete", "advance chapter", err)
	}

	env.Logger.Info("chapter ready",
		slog.String("stage", "complete"),
		slog.String("chapter_id", chapterID),
		slog.String("book_id", chapter.BookID),
		slog.String("title", chapter.Title))

	if !env.Cfg.Sync.Enabled {
		return nil
	}
	settle := time.Duration(env.Cfg.Sync.SettleDelaySeconds) * time.Second
	if err := env.Broker.Publish(ctx, queue.ChannelSync, chapter.BookID, settle); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "complete", "schedule sync", "", err)
	}
	return nil
}
