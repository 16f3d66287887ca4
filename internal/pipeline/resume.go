package pipeline

import (
	"context"
	"errors"
	"fmt"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

// ResumeChapter re-opens a failed chapter: the record rewinds to pending and
// a task is published on the channel of the first stage whose artifact is
// missing, so finished work is not redone. Returns the channel the chapter
// rejoined on.
func ResumeChapter(ctx context.Context, store *records.Store, broker *queue.Broker, chapterID string) (queue.Channel, error) {
	chapter, err := store.GetChapter(ctx, chapterID)
	if err != nil {
		return "", err
	}
	if chapter.StageStatus != stage.StatusFailed {
		return "", fmt.Errorf("chapter %s is %s, only failed chapters can be retried", chapterID, chapter.StageStatus)
	}

	channel, err := resumeChannel(ctx, store, chapter)
	if err != nil {
		return "", err
	}

	if _, err := store.UpdateChapter(ctx, chapterID, func(c *records.Chapter) error {
		c.Reset()
		return nil
	}); err != nil {
		return "", err
	}
	if err := broker.Publish(ctx, channel, chapterID, 0); err != nil {
		return "", err
	}
	return channel, nil
}

// ResumeBook re-opens a failed book by rewinding it to pending and
// re-publishing discovery. Discovery merges, so chapters that already
// finished are left alone.
func ResumeBook(ctx context.Context, store *records.Store, broker *queue.Broker, bookID string) error {
	book, err := store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book.Status != stage.StatusFailed {
		return fmt.Errorf("book %s is %s, only failed books can be retried", bookID, book.Status)
	}
	if _, err := store.UpdateBook(ctx, bookID, func(b *records.Book) error {
		b.Status = stage.StatusPending
		b.RetryCount = 0
		b.LastError = ""
		return nil
	}); err != nil {
		return err
	}
	return broker.Publish(ctx, queue.ChannelDiscover, bookID, 0)
}

func resumeChannel(ctx context.Context, store *records.Store, chapter *records.Chapter) (queue.Channel, error) {
	switch {
	case chapter.Output(outputVideo) != "":
		return queue.ChannelComplete, nil
	case chapter.Output(outputAudio) != "":
		return queue.ChannelConvert, nil
	case chapter.Output(outputText) != "":
		return queue.ChannelSynthesize, nil
	}

	known, err := store.MetadataExists(ctx, chapter.BookID)
	if err != nil && !errors.Is(err, records.ErrNotFound) {
		return "", err
	}
	if known {
		return queue.ChannelChapter, nil
	}
	return queue.ChannelMetadata, nil
}
