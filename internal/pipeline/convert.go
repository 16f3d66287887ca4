package pipeline

import (
	"context"
	"log/slog"
	"os"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/services/converter"
	"chaptercast/internal/stage"
)

// convertHandler muxes the synthesized audio into the final container with
// cover art, tags, and a subtitle track built from the chapter text.
type convertHandler struct {
	env *Env
}

func (h *convertHandler) Channel() queue.Channel { return queue.ChannelConvert }
func (h *convertHandler) Kind() string           { return records.KindChapter }
func (h *convertHandler) Target() stage.Status   { return stage.StatusConverted }

func (h *convertHandler) Execute(ctx context.Context, chapterID string) error {
	env := h.env

	chapter, err := env.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return storeErr("convert", "load chapter", err)
	}
	book, err := env.Store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return storeErr("convert", "load book", err)
	}

	audioPath := chapter.Output(outputAudio)
	if audioPath == "" {
		return services.Wrap(services.ErrValidation, "convert", "resolve input",
			"chapter has no audio output", nil)
	}

	meta, err := env.Store.GetMetadata(ctx, book.ID)
	if err != nil {
		if !isNotFound(err) {
			return storeErr("convert", "load metadata", err)
		}
		meta = &records.Metadata{BookID: book.ID, Title: book.Title}
	}

	subtitlePath, wroteSubs, err := h.writeSubtitles(chapter, book, audioPath)
	if err != nil {
		return err
	}

	genre := meta.Genre
	if genre == "" {
		genre = "audiobook"
	}
	videoPath := env.Layout.VideoPath(book.Name(), chapter.Title)
	req := converter.Request{
		AudioPath:  audioPath,
		CoverPath:  meta.CoverPath,
		OutputPath: videoPath,
		Tags: converter.Tags{
			Album:       book.Name(),
			Artist:      meta.Author,
			Title:       chapter.Title,
			Genre:       genre,
			Track:       chapter.OrderIndex + 1,
			Date:        meta.ReleasedYear,
			Compilation: true,
		},
	}
	if wroteSubs {
		req.SubtitlePath = subtitlePath
	}
	if err := env.Media.Convert(ctx, req); err != nil {
		return err
	}

	if _, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		if err := c.SetOutput(outputVideo, videoPath); err != nil {
			return services.Wrap(services.ErrValidation, "convert", "record output", "", err)
		}
		if wroteSubs {
			if err := c.SetOutput(outputSubtitle, subtitlePath); err != nil {
				return services.Wrap(services.ErrValidation, "convert", "record output", "", err)
			}
		}
		return c.Advance(stage.StatusConverted)
	}); err != nil {
		return storeErr("convert", "advance chapter", err)
	}

	env.Logger.Info("chapter converted",
		slog.String("stage", "convert"),
		slog.String("chapter_id", chapterID),
		slog.String("output", videoPath))

	if err := env.Broker.Publish(ctx, queue.ChannelComplete, chapterID, 0); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "convert", "dispatch next", "", err)
	}
	return nil
}

func (h *convertHandler) writeSubtitles(chapter *records.Chapter, book *records.Book, audioPath string) (string, bool, error) {
	env := h.env

	textPath := chapter.Output(outputText)
	if textPath == "" {
		return "", false, nil
	}
	text, err := os.ReadFile(textPath)
	if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "convert", "read text", textPath, err)
	}
	duration, err := env.Media.Duration(audioPath)
	if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "convert", "probe audio", audioPath, err)
	}

	subtitlePath := env.Layout.SubtitlePath(book.Name(), chapter.Title)
	wrote, err := converter.WriteSubtitles(string(text), duration, subtitlePath)
	if err != nil {
		return "", false, services.Wrap(services.ErrTransient, "convert", "write subtitles", subtitlePath, err)
	}
	return subtitlePath, wrote, nil
}
