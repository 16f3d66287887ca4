// Package scraper fetches and parses source web pages: a book's chapter
// listing, a chapter's text, and the metadata page for a published book.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"

	"chaptercast/internal/config"
	"chaptercast/internal/logging"
	"chaptercast/internal/services"
)

// ChapterLink is one entry in a book's chapter listing.
type ChapterLink struct {
	Title string
	URL   string
}

// BookListing is the parsed chapter index page of a book.
type BookListing struct {
	Title    string
	Chapters []ChapterLink
}

// Metadata is the parsed book metadata page.
type Metadata struct {
	Title        string
	Author       string
	Genre        string
	Synopsis     string
	CoverURL     string
	ReleasedYear string
}

// ChapterContent is the parsed body of a single chapter page.
type ChapterContent struct {
	Title string
	Text  string
}

// Client fetches pages over HTTP with bounded retries.
type Client struct {
	httpClient *http.Client
	userAgent  string
	attempts   uint
	logger     *slog.Logger
}

// NewClient builds a Client from the scraper config section.
func NewClient(cfg config.Scraper, logger *slog.Logger) *Client {
	attempts := cfg.FetchAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		userAgent:  cfg.UserAgent,
		attempts:   uint(attempts),
		logger:     logging.WithComponent(logger, "scraper"),
	}
}

// FetchBook retrieves and parses a book's chapter listing page.
func (c *Client) FetchBook(ctx context.Context, url string) (*BookListing, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	listing := &BookListing{
		Title: strings.TrimSpace(doc.Find("div.desc > h3.title").First().Text()),
	}
	doc.Find("ul.list-chapter > li > a").Each(func(_ int, sel *goquery.Selection) {
		href, hasHref := sel.Attr("href")
		title, hasTitle := sel.Attr("title")
		if hasHref && hasTitle {
			listing.Chapters = append(listing.Chapters, ChapterLink{Title: title, URL: href})
		}
	})

	if listing.Title == "" || len(listing.Chapters) == 0 {
		return nil, services.Wrap(services.ErrValidation, "discover", "parse listing",
			fmt.Sprintf("no book title or chapters at %s", url), nil)
	}
	c.logger.Info("scraped chapter listing",
		slog.String("title", listing.Title),
		slog.Int("chapters", len(listing.Chapters)))
	return listing, nil
}

// FetchChapter retrieves and parses one chapter page.
func (c *Client) FetchChapter(ctx context.Context, url string) (*ChapterContent, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	content := &ChapterContent{
		Title: strings.TrimSpace(doc.Find("a.chr-title").First().Text()),
		Text:  strings.TrimSpace(doc.Find("div#chr-content").First().Text()),
	}
	if content.Title == "" || content.Text == "" {
		return nil, services.Wrap(services.ErrValidation, "chapter", "parse content",
			fmt.Sprintf("missing title or body at %s", url), nil)
	}
	return content, nil
}

// FetchMetadata retrieves and parses the metadata page for a book.
func (c *Client) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	doc, err := c.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	meta := &Metadata{
		Title:        strings.TrimSpace(doc.Find("h1.Text__title1").First().Text()),
		Author:       strings.TrimSpace(doc.Find("a.ContributorLink").First().Text()),
		Synopsis:     strings.TrimSpace(doc.Find("div.BookPageMetadataSection__description").First().Text()),
		Genre:        joinedText(doc.Find("div.BookPageMetadataSection__genres").First(), ";"),
		ReleasedYear: fmt.Sprintf("%d", time.Now().Year()),
	}
	if src, ok := doc.Find("img.ResponsiveImage").First().Attr("src"); ok {
		meta.CoverURL = src
	}
	if meta.Author == "" {
		meta.Author = "Unknown Artist"
	}
	if meta.Title == "" {
		return nil, services.Wrap(services.ErrValidation, "metadata", "parse page",
			fmt.Sprintf("no title at %s", url), nil)
	}
	return meta, nil
}

// DownloadCover fetches the cover image to dest, creating parent directories.
func (c *Client) DownloadCover(ctx context.Context, url, dest string) error {
	body, err := c.fetchBytes(ctx, url)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "metadata", "store cover", "", err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "metadata", "store cover", "", err)
	}
	return nil
}

// FilterChapters narrows a listing to the inclusive range [startURL, endURL].
// Empty bounds mean the start or end of the listing respectively.
func FilterChapters(chapters []ChapterLink, startURL, endURL string) ([]ChapterLink, error) {
	start := 0
	if startURL != "" {
		start = indexOfURL(chapters, startURL)
		if start < 0 {
			return nil, services.Wrap(services.ErrValidation, "discover", "filter range",
				fmt.Sprintf("start url %s not in listing", startURL), nil)
		}
	}
	end := len(chapters) - 1
	if endURL != "" {
		end = indexOfURL(chapters, endURL)
		if end < 0 || end < start {
			return nil, services.Wrap(services.ErrValidation, "discover", "filter range",
				fmt.Sprintf("end url %s not in listing or before start", endURL), nil)
		}
	}
	return chapters[start : end+1], nil
}

func indexOfURL(chapters []ChapterLink, url string) int {
	for i, ch := range chapters {
		if ch.URL == url {
			return i
		}
	}
	return -1
}

func joinedText(sel *goquery.Selection, separator string) string {
	var parts []string
	sel.Find("*").Each(func(_ int, child *goquery.Selection) {
		if child.Children().Length() == 0 {
			if text := strings.TrimSpace(child.Text()); text != "" {
				parts = append(parts, text)
			}
		}
	})
	if len(parts) == 0 {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}
	return strings.Join(parts, separator)
}

func (c *Client) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := c.fetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scraper", "parse html", url, err)
	}
	return doc, nil
}

func (c *Client) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	var permanent bool
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if c.userAgent != "" {
				req.Header.Set("User-Agent", c.userAgent)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusOK:
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return fmt.Errorf("status %d from %s", resp.StatusCode, url)
			default:
				permanent = true
				return retry.Unrecoverable(fmt.Errorf("status %d from %s", resp.StatusCode, url))
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("fetch retry",
				slog.String("url", url),
				slog.Uint64("attempt", uint64(n+1)),
				slog.Any("error", err))
		}),
	)
	if err != nil {
		marker := services.ErrTransient
		if permanent {
			marker = services.ErrValidation
		}
		return nil, services.Wrap(marker, "scraper", "fetch", url, err)
	}
	return body, nil
}
