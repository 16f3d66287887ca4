package pipeline

import (
	"context"
	"log/slog"

	"chaptercast/internal/identity"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/services/scraper"
	"chaptercast/internal/stage"
)

// discoverHandler scrapes a book's chapter listing, creates chapter records
// for the requested range, and dispatches each chapter into the pipeline.
// Re-discovery merges: chapters already known keep their state, completed
// chapters are not re-dispatched.
type discoverHandler struct {
	env *Env
}

func (h *discoverHandler) Channel() queue.Channel { return queue.ChannelDiscover }
func (h *discoverHandler) Kind() string           { return records.KindBook }

// Discovery has no target status: re-submission re-runs it, and the merge
// keeps re-runs idempotent.
func (h *discoverHandler) Target() stage.Status { return "" }

func (h *discoverHandler) Execute(ctx context.Context, bookID string) error {
	env := h.env
	logger := env.Logger.With(slog.String("stage", "discover"), slog.String("book_id", bookID))

	book, err := env.Store.GetBook(ctx, bookID)
	if err != nil {
		return storeErr("discover", "load book", err)
	}

	listing, err := env.Source.FetchBook(ctx, book.SourceURL)
	if err != nil {
		return err
	}
	ranged, err := scraper.FilterChapters(listing.Chapters, book.StartURL, book.EndURL)
	if err != nil {
		return err
	}

	metadataKnown, err := env.Store.MetadataExists(ctx, bookID)
	if err != nil {
		return storeErr("discover", "check metadata", err)
	}

	var created, dispatched int
	for i, link := range ranged {
		chapterID := identity.ChapterID(link.Title, link.URL)

		existing, err := env.Store.GetChapter(ctx, chapterID)
		switch {
		case err == nil:
			if existing.StageStatus.IsTerminal() {
				logger.Info("chapter already processed, skipping",
					slog.String("chapter_id", chapterID),
					slog.String("title", link.Title))
				book.LinkChapter(chapterID)
				continue
			}
			// A range shift or listing reorder can move a known chapter;
			// keep its position current.
			if existing.OrderIndex != i {
				if _, err := env.Store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
					c.OrderIndex = i
					return nil
				}); err != nil {
					return storeErr("discover", "update chapter order", err)
				}
			}
		case isNotFound(err):
			chapter := &records.Chapter{
				ID:          chapterID,
				BookID:      bookID,
				OrderIndex:  i,
				Title:       link.Title,
				URL:         link.URL,
				StageStatus: stage.StatusPending,
			}
			if err := env.Store.SaveChapter(ctx, chapter); err != nil {
				return storeErr("discover", "save chapter", err)
			}
			created++
		default:
			return storeErr("discover", "load chapter", err)
		}

		book.LinkChapter(chapterID)

		next := queue.ChannelMetadata
		if metadataKnown {
			next = queue.ChannelChapter
		}
		if err := env.Broker.Publish(ctx, next, chapterID, 0); err != nil {
			return services.Wrap(services.ErrStoreUnavailable, "discover", "dispatch chapter", "", err)
		}
		dispatched++
	}

	if _, err := env.Store.UpdateBook(ctx, bookID, func(b *records.Book) error {
		if listing.Title != "" {
			b.Title = listing.Title
		}
		b.ChapterIDs = book.ChapterIDs
		b.Status = stage.StatusDiscovering
		b.RetryCount = 0
		b.LastError = ""
		return nil
	}); err != nil {
		return storeErr("discover", "update book", err)
	}

	logger.Info("discovery complete",
		slog.String("title", listing.Title),
		slog.Int("in_range", len(ranged)),
		slog.Int("created", created),
		slog.Int("dispatched", dispatched))
	return nil
}
