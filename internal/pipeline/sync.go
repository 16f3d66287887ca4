package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/services"
	"chaptercast/internal/stage"
)

// syncHandler pushes a book's finished artifacts to the remote library. One
// transfer per book runs at a time, enforced by a TTL lock; a task that loses
// the lock backs off without spending retry budget. Sync has no target
// status: it re-runs every time chapters finish, and the book flips to
// completed once all of its chapters have.
type syncHandler struct {
	env *Env
}

func (h *syncHandler) Channel() queue.Channel { return queue.ChannelSync }
func (h *syncHandler) Kind() string           { return records.KindBook }
func (h *syncHandler) Target() stage.Status   { return "" }

// SyncLockName is the lock key guarding one book's transfers.
func SyncLockName(bookID string) string {
	return "sync:" + bookID
}

func (h *syncHandler) Execute(ctx context.Context, bookID string) error {
	env := h.env
	logger := env.Logger.With(slog.String("stage", "sync"), slog.String("book_id", bookID))

	book, err := env.Store.GetBook(ctx, bookID)
	if err != nil {
		return storeErr("sync", "load book", err)
	}

	holder := uuid.NewString()
	ttl := time.Duration(env.Cfg.Sync.LockTTLSeconds) * time.Second
	acquired, err := env.Locks.Acquire(ctx, SyncLockName(bookID), holder, ttl)
	if err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "sync", "acquire lock", "", err)
	}
	if !acquired {
		return services.Wrap(services.ErrContention, "sync", "acquire lock",
			fmt.Sprintf("transfer for %s already in progress", book.Name()), nil)
	}
	defer func() {
		if err := env.Locks.Release(context.WithoutCancel(ctx), SyncLockName(bookID), holder); err != nil {
			logger.Warn("lock release failed", slog.Any("error", err))
		}
	}()

	if err := env.Pusher.Push(ctx, env.Layout.SyncSources(book.Name())); err != nil {
		return err
	}
	logger.Info("library sync complete", slog.String("book", book.Name()))

	done, err := h.allChaptersCompleted(ctx, book)
	if err != nil {
		return err
	}
	if done && !book.Status.IsTerminal() {
		if _, err := env.Store.UpdateBook(ctx, bookID, func(b *records.Book) error {
			b.Status = stage.StatusCompleted
			return nil
		}); err != nil {
			return storeErr("sync", "finalize book", err)
		}
		logger.Info("book completed", slog.String("book", book.Name()))
	}
	return nil
}

func (h *syncHandler) allChaptersCompleted(ctx context.Context, book *records.Book) (bool, error) {
	if len(book.ChapterIDs) == 0 {
		return false, nil
	}
	chapters, err := h.env.Store.ListChaptersByBook(ctx, book.ID)
	if err != nil {
		return false, storeErr("sync", "list chapters", err)
	}
	if len(chapters) == 0 {
		return false, nil
	}
	for _, chapter := range chapters {
		if chapter.StageStatus != stage.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}
