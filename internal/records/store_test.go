package records_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"chaptercast/internal/identity"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
	"chaptercast/internal/testsupport"
)

func newChapter(bookID string, index int) *records.Chapter {
	title := fmt.Sprintf("Chapter %d", index)
	url := fmt.Sprintf("https://example.com/book/chapter-%d", index)
	return &records.Chapter{
		ID:          identity.ChapterID(title, url),
		BookID:      bookID,
		OrderIndex:  index,
		Title:       title,
		URL:         url,
		StageStatus: stage.StatusPending,
	}
}

func TestSaveAndGetChapter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	chapter := newChapter("book-1", 1)
	if err := store.SaveChapter(ctx, chapter); err != nil {
		t.Fatalf("SaveChapter failed: %v", err)
	}

	fetched, err := store.GetChapter(ctx, chapter.ID)
	if err != nil {
		t.Fatalf("GetChapter failed: %v", err)
	}
	if fetched.Title != chapter.Title || fetched.BookID != "book-1" {
		t.Fatalf("unexpected chapter: %#v", fetched)
	}
	if fetched.SchemaVersion != records.DocumentVersion {
		t.Fatalf("expected schema version stamp, got %d", fetched.SchemaVersion)
	}
	if fetched.CreatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.GetChapter(context.Background(), "nope")
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	ok, err := store.ChapterExists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing chapter, got ok=%v err=%v", ok, err)
	}

	chapter := newChapter("book-1", 1)
	if err := store.SaveChapter(ctx, chapter); err != nil {
		t.Fatalf("SaveChapter failed: %v", err)
	}
	ok, err = store.ChapterExists(ctx, chapter.ID)
	if err != nil || !ok {
		t.Fatalf("expected chapter to exist, got ok=%v err=%v", ok, err)
	}
}

func TestUpdateChapterReadModifyWrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	chapter := newChapter("book-1", 1)
	if err := store.SaveChapter(ctx, chapter); err != nil {
		t.Fatalf("SaveChapter failed: %v", err)
	}

	updated, err := store.UpdateChapter(ctx, chapter.ID, func(c *records.Chapter) error {
		c.RetryCount++
		c.LastError = "transient"
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateChapter failed: %v", err)
	}
	if updated.RetryCount != 1 || updated.LastError != "transient" {
		t.Fatalf("mutation not applied: %#v", updated)
	}

	fetched, err := store.GetChapter(ctx, chapter.ID)
	if err != nil {
		t.Fatalf("GetChapter failed: %v", err)
	}
	if fetched.RetryCount != 1 {
		t.Fatal("mutation not persisted")
	}
}

func TestUpdateChapterMutatorErrorAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	chapter := newChapter("book-1", 1)
	if err := store.SaveChapter(ctx, chapter); err != nil {
		t.Fatalf("SaveChapter failed: %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.UpdateChapter(ctx, chapter.ID, func(c *records.Chapter) error {
		c.RetryCount = 99
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}

	fetched, err := store.GetChapter(ctx, chapter.ID)
	if err != nil {
		t.Fatalf("GetChapter failed: %v", err)
	}
	if fetched.RetryCount != 0 {
		t.Fatal("aborted mutation must not persist")
	}
}

func TestListChaptersByStatusAndBook(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		chapter := newChapter("book-1", i)
		if i == 2 {
			chapter.StageStatus = stage.StatusFailed
			chapter.LastError = "gone"
		}
		if err := store.SaveChapter(ctx, chapter); err != nil {
			t.Fatalf("SaveChapter failed: %v", err)
		}
	}
	other := newChapter("book-2", 1)
	if err := store.SaveChapter(ctx, other); err != nil {
		t.Fatalf("SaveChapter failed: %v", err)
	}

	failed, err := store.ListChaptersByStatus(ctx, stage.StatusFailed)
	if err != nil {
		t.Fatalf("ListChaptersByStatus failed: %v", err)
	}
	if len(failed) != 1 || failed[0].LastError != "gone" {
		t.Fatalf("unexpected failed chapters: %#v", failed)
	}

	byBook, err := store.ListChaptersByBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("ListChaptersByBook failed: %v", err)
	}
	if len(byBook) != 3 {
		t.Fatalf("expected 3 chapters for book-1, got %d", len(byBook))
	}
	for i, chapter := range byBook {
		if chapter.OrderIndex != i+1 {
			t.Fatalf("chapters not ordered by position: %#v", byBook)
		}
	}

	counts, err := store.ChapterCountsByStatus(ctx)
	if err != nil {
		t.Fatalf("ChapterCountsByStatus failed: %v", err)
	}
	if counts[stage.StatusPending] != 3 || counts[stage.StatusFailed] != 1 {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestUnknownFieldsIgnoredOnRead(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// A future writer may add fields this build does not know about.
	future := map[string]any{
		"schema_version":  2,
		"id":              "future-chapter",
		"book_id":         "book-1",
		"stage_status":    "pending",
		"title":           "Ch1",
		"url":             "https://x/1",
		"a_future_field":  "ignored",
		"another_unknown": 42,
	}
	if err := store.Save(ctx, records.KindChapter, "future-chapter", future); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	chapter, err := store.GetChapter(ctx, "future-chapter")
	if err != nil {
		t.Fatalf("GetChapter failed: %v", err)
	}
	if chapter.Title != "Ch1" || chapter.StageStatus != stage.StatusPending {
		t.Fatalf("known fields lost: %#v", chapter)
	}
	if chapter.RetryCount != 0 {
		t.Fatal("missing fields must default")
	}
}

func TestChapterOutputSetOnce(t *testing.T) {
	chapter := newChapter("book-1", 1)
	if err := chapter.SetOutput("chapter", "/tmp/a.txt"); err != nil {
		t.Fatalf("first SetOutput failed: %v", err)
	}
	if err := chapter.SetOutput("chapter", "/tmp/a.txt"); err != nil {
		t.Fatalf("matching rewrite must be a no-op: %v", err)
	}
	if err := chapter.SetOutput("chapter", "/tmp/b.txt"); err == nil {
		t.Fatal("conflicting overwrite must fail")
	}
	if got := chapter.Output("chapter"); got != "/tmp/a.txt" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestChapterAdvance(t *testing.T) {
	chapter := newChapter("book-1", 1)
	chapter.RetryCount = 3
	chapter.LastError = "transient"

	if err := chapter.Advance(stage.StatusChapterScraped); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if chapter.RetryCount != 0 || chapter.LastError != "" {
		t.Fatal("advance must reset retry accounting and clear last error")
	}
	if err := chapter.Advance(stage.StatusPending); err == nil {
		t.Fatal("regression must be rejected")
	}
}

func TestBookLinkChapterMerges(t *testing.T) {
	book := &records.Book{ID: "book-1", Status: stage.StatusDiscovering}
	book.LinkChapter("a")
	book.LinkChapter("b")
	book.LinkChapter("a")
	if len(book.ChapterIDs) != 2 {
		t.Fatalf("expected merged chapter ids, got %v", book.ChapterIDs)
	}
}
