package pipeline

import (
	"context"
	"log/slog"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// metadataHandler ensures descriptive metadata exists for the chapter's book
// before the chapter proceeds. Metadata is fetched once per book: the saved
// record is the dedup signal, so concurrent chapters of the same book fetch
// at most a few times and converge on one document.
type metadataHandler struct {
	env *Env
}

func (h *metadataHandler) Channel() queue.Channel { return queue.ChannelMetadata }
func (h *metadataHandler) Kind() string           { return records.KindChapter }
func (h *metadataHandler) Target() stage.Status   { return stage.StatusMetadataFetched }

func (h *metadataHandler) Execute(ctx context.Context, chapterID string) error {
	env := h.env
	logger := env.Logger.With(slog.String("stage", "metadata"), slog.String("chapter_id", chapterID))

	chapter, err := env.Store.GetChapter(ctx, chapterID)
	if err != nil {
		return storeErr("metadata", "load chapter", err)
	}
	book, err := env.Store.GetBook(ctx, chapter.BookID)
	if err != nil {
		return storeErr("metadata", "load book", err)
	}

	known, err := env.Store.MetadataExists(ctx, book.ID)
	if err != nil {
		return storeErr("metadata", "check metadata", err)
	}
	if !known {
		meta, err := h.fetch(ctx, book)
		if err != nil {
			return err
		}
		if err := env.Store.SaveMetadata(ctx, meta); err != nil {
			return storeErr("metadata", "save metadata", err)
		}
		logger.Info("metadata saved",
			slog.String("book_id", book.ID),
			slog.String("author", meta.Author))
	}

	if _, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		return c.Advance(stage.StatusMetadataFetched)
	}); err != nil {
		return storeErr("metadata", "advance chapter", err)
	}
	if err := env.Broker.Publish(ctx, queue.ChannelChapter, chapterID, 0); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "metadata", "dispatch next", "", err)
	}
	return nil
}

// fetch retrieves metadata from the book's metadata page. A book without a
// metadata URL still gets a minimal document so the once-per-book dedup
// holds.
func (h *metadataHandler) fetch(ctx context.Context, book *records.Book) (*records.Metadata, error) {
	env := h.env
	meta := &records.Metadata{BookID: book.ID, Title: book.Title}
	if book.MetadataURL == "" {
		return meta, nil
	}

	scraped, err := env.Source.FetchMetadata(ctx, book.MetadataURL)
	if err != nil {
		return nil, err
	}
	meta.Title = scraped.Title
	meta.Author = scraped.Author
	meta.Genre = scraped.Genre
	meta.Synopsis = scraped.Synopsis
	meta.CoverURL = scraped.CoverURL
	meta.ReleasedYear = scraped.ReleasedYear

	if scraped.CoverURL != "" {
		coverPath := env.Layout.CoverPath(book.Name())
		if err := env.Source.DownloadCover(ctx, scraped.CoverURL, coverPath); err != nil {
			// The cover is decorative; conversion falls back to audio-only.
			env.Logger.Warn("cover download failed",
				slog.String("book_id", book.ID),
				slog.Any("error", err))
		} else {
			meta.CoverPath = coverPath
		}
	}
	return meta, nil
}
