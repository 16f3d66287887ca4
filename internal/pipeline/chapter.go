package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

const (
	outputText     = "text"
	outputAudio    = "audio"
	outputSubtitle = "subtitle"
	outputVideo    = "video"
)

// chapterHandler scrapes one chapter's text and stores it as the stage's
// artifact. The text path is deterministic, so a redelivered task that
// already wrote the file lands on the same output.
type chapterHandler struct {
	env *Env
}

func (h *chapterHandler) Channel() queue.Channel { return queue.ChannelChapter }
func (h *chapterHandler) Kind() string           { return records.KindChapter }
func (h *chapterHandler) Target() stage.Status   { return stage.StatusChapterScraped }

func (h *chapterHandler) Execute(ctx context.Context, chapterID string) error {
	env := h.env

	chapter, err := env.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return storeErr("chapter", "load chapter", err)
	}
	book, err := env.Store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return storeErr("chapter", "load book", err)
	}

	content, err := env.Source.FetchChapter(ctx, chapter.URL)
	if err != nil {
		return err
	}

	textPath := env.Layout.TextPath(book.Name(), chapter.Title)
	if err := os.MkdirAll(filepath.Dir(textPath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "chapter", "prepare text dir", "", err)
	}
	if err := os.WriteFile(textPath, []byte(content.Text), 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "chapter", "write text", textPath, err)
	}

	if _, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		if err := c.SetOutput(outputText, textPath); err != nil {
			return services.Wrap(services.ErrValidation, "chapter", "record output", "", err)
		}
		return c.Advance(stage.StatusChapterScraped)
	}); err != nil {
		return storeErr("chapter", "advance chapter", err)
	}

	env.Logger.Info("chapter text scraped",
		slog.String("stage", "chapter"),
		slog.String("chapter_id", chapterID),
		slog.String("title", chapter.Title),
		slog.Int("bytes", len(content.Text)))

	if err := env.Broker.Publish(ctx, queue.ChannelSynthesize, chapterID, 0); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "chapter", "dispatch next", "", err)
	}
	return nil
}
