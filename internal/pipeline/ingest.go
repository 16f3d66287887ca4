package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chaptercast/internal/identity"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

// IngestRequest describes a book submitted for processing.
type IngestRequest struct {
	SourceURL   string
	MetadataURL string
	ShortName   string
	StartURL    string
	EndURL      string
}

// Ingest registers a book and enqueues its discovery. Submitting a known book
// re-triggers discovery: existing chapters keep their state and new ones are
// merged in.
func Ingest(ctx context.Context, store *records.Store, broker *queue.Broker, req IngestRequest) (*records.Book, error) {
	if strings.TrimSpace(req.SourceURL) == "" {
		return nil, errors.New("source url is required")
	}

	bookID := identity.BookID(req.ShortName, req.SourceURL)

	book, err := store.GetBook(ctx, bookID)
	switch {
	case err == nil:
		book, err = store.UpdateBook(ctx, bookID, func(b *records.Book) error {
			if req.MetadataURL != "" {
				b.MetadataURL = req.MetadataURL
			}
			b.StartURL = req.StartURL
			b.EndURL = req.EndURL
			if b.Status == stage.StatusFailed {
				b.Status = stage.StatusPending
				b.RetryCount = 0
				b.LastError = ""
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("update book: %w", err)
		}
	case isNotFound(err):
		book = &records.Book{
			ID:          bookID,
			ShortName:   req.ShortName,
			SourceURL:   req.SourceURL,
			MetadataURL: req.MetadataURL,
			StartURL:    req.StartURL,
			EndURL:      req.EndURL,
			Status:      stage.StatusPending,
		}
		if err := store.SaveBook(ctx, book); err != nil {
			return nil, fmt.Errorf("save book: %w", err)
		}
	default:
		return nil, fmt.Errorf("load book: %w", err)
	}

	if err := broker.Publish(ctx, queue.ChannelDiscover, bookID, 0); err != nil {
		return nil, fmt.Errorf("enqueue discovery: %w", err)
	}
	return book, nil
}
