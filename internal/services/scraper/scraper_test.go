package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/services"
	"chaptercast/internal/services/scraper"
)

const listingHTML = `<html><body>
<div class="desc"><h3 class="title">The Long Road</h3></div>
<ul class="list-chapter">
  <li><a href="/book/ch-1" title="Chapter 1">Chapter 1</a></li>
  <li><a href="/book/ch-2" title="Chapter 2">Chapter 2</a></li>
  <li><a href="/book/ch-3" title="Chapter 3">Chapter 3</a></li>
</ul>
</body></html>`

const chapterHTML = `<html><body>
<a class="chr-title" href="#">Chapter 1</a>
<div id="chr-content"><p>It was a dark and stormy night.</p></div>
</body></html>`

const metadataHTML = `<html><body>
<h1 class="Text__title1">The Long Road</h1>
<a class="ContributorLink">A. Writer</a>
<img class="ResponsiveImage" src="https://img.example/cover.jpg">
<div class="BookPageMetadataSection__description">A story about roads.</div>
<div class="BookPageMetadataSection__genres"><span>Fantasy</span><span>Adventure</span></div>
</body></html>`

func newClient(t *testing.T, attempts int) *scraper.Client {
	t.Helper()
	cfg := config.Scraper{UserAgent: "chaptercast-test", RequestTimeout: 5, FetchAttempts: attempts}
	return scraper.NewClient(cfg, logging.NewNop())
}

func serve(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchBookParsesListing(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	})

	listing, err := newClient(t, 1).FetchBook(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchBook failed: %v", err)
	}
	if listing.Title != "The Long Road" {
		t.Fatalf("unexpected title %q", listing.Title)
	}
	if len(listing.Chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(listing.Chapters))
	}
	if listing.Chapters[0].URL != "/book/ch-1" || listing.Chapters[0].Title != "Chapter 1" {
		t.Fatalf("unexpected first chapter: %#v", listing.Chapters[0])
	}
}

func TestFetchBookEmptyListingIsValidationError(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
	})

	_, err := newClient(t, 1).FetchBook(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFetchChapterParsesContent(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chapterHTML))
	})

	content, err := newClient(t, 1).FetchChapter(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchChapter failed: %v", err)
	}
	if content.Title != "Chapter 1" {
		t.Fatalf("unexpected title %q", content.Title)
	}
	if content.Text != "It was a dark and stormy night." {
		t.Fatalf("unexpected text %q", content.Text)
	}
}

func TestFetchMetadataParsesPage(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(metadataHTML))
	})

	meta, err := newClient(t, 1).FetchMetadata(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if meta.Title != "The Long Road" || meta.Author != "A. Writer" {
		t.Fatalf("unexpected metadata: %#v", meta)
	}
	if meta.CoverURL != "https://img.example/cover.jpg" {
		t.Fatalf("unexpected cover url %q", meta.CoverURL)
	}
	if meta.Genre != "Fantasy;Adventure" {
		t.Fatalf("unexpected genre %q", meta.Genre)
	}
	if meta.Synopsis != "A story about roads." {
		t.Fatalf("unexpected synopsis %q", meta.Synopsis)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chapterHTML))
	})

	content, err := newClient(t, 5).FetchChapter(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchChapter failed after retries: %v", err)
	}
	if content.Title != "Chapter 1" {
		t.Fatalf("unexpected content after retries: %#v", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestFetchNotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := newClient(t, 5).FetchChapter(context.Background(), srv.URL)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for 404, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", calls.Load())
	}
}

func TestFilterChapters(t *testing.T) {
	chapters := []scraper.ChapterLink{
		{Title: "Chapter 1", URL: "/ch-1"},
		{Title: "Chapter 2", URL: "/ch-2"},
		{Title: "Chapter 3", URL: "/ch-3"},
		{Title: "Chapter 4", URL: "/ch-4"},
	}

	ranged, err := scraper.FilterChapters(chapters, "/ch-2", "/ch-3")
	if err != nil {
		t.Fatalf("FilterChapters failed: %v", err)
	}
	if len(ranged) != 2 || ranged[0].URL != "/ch-2" || ranged[1].URL != "/ch-3" {
		t.Fatalf("unexpected range: %#v", ranged)
	}

	all, err := scraper.FilterChapters(chapters, "", "")
	if err != nil {
		t.Fatalf("FilterChapters failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("empty bounds must keep everything, got %d", len(all))
	}

	if _, err := scraper.FilterChapters(chapters, "/ch-3", "/ch-1"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("inverted range must be a validation error, got %v", err)
	}
	if _, err := scraper.FilterChapters(chapters, "/missing", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown start must be a validation error, got %v", err)
	}
}
