package pipeline

import (
	"context"
	"log/slog"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// synthesizeHandler turns the scraped chapter text into speech audio.
type synthesizeHandler struct {
	env *Env
}

func (h *synthesizeHandler) Channel() queue.Channel { return queue.ChannelSynthesize }
func (h *synthesizeHandler) Kind() string           { return records.KindChapter }
func (h *synthesizeHandler) Target() stage.Status   { return stage.StatusSynthesized }

func (h *synthesizeHandler) Execute(ctx context.Context, chapterID string) error {
	env := h.env

	chapter, err := env.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return storeErr("synthesize", "load chapter", err)
	}
	book, err := env.Store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return storeErr("synthesize", "load book", err)
	}

	textPath := chapter.Output(outputText)
	if textPath == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "resolve input",
			"chapter has no text output", nil)
	}
	audioPath := env.Layout.AudioPath(book.Name(), chapter.Title)

	if err := env.Speech.Synthesize(ctx, textPath, audioPath); err != nil {
		return err
	}

	if _, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		if err := c.SetOutput(outputAudio, audioPath); err != nil {
			return services.Wrap(services.ErrValidation, "synthesize", "record output", "", err)
		}
		return c.Advance(stage.StatusSynthesized)
	}); err != nil {
		return storeErr("synthesize", "advance chapter", err)
	}

	env.Logger.Info("chapter synthesized",
		slog.String("stage", "synthesize"),
		slog.String("chapter_id", chapterID),
		slog.String("audio", audioPath))

	if err := env.Broker.Publish(ctx, queue.ChannelConvert, chapterID, 0); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "synthesize", "dispatch next", "", err)
	}
	return nil
}
