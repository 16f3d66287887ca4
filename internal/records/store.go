package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"chaptercast/internal/stage"
	"chaptercast/internal/storage"
)

// ErrNotFound indicates no record exists under the requested key.
var ErrNotFound = errors.New("record not found")

// Store persists pipeline documents in the shared SQLite database. Documents
// are flat JSON keyed "{entity_type}:{id}": unknown fields are ignored on
// read and missing fields default, so schema additions stay backward
// compatible.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Key builds the persisted record key for an entity.
func Key(kind, id string) string {
	return kind + ":" + id
}

// Get unmarshals the document stored under (kind, id) into out.
func (s *Store) Get(ctx context.Context, kind, id string, out any) error {
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT body FROM records WHERE record_key = ?`, Key(kind, id))
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, Key(kind, id))
		}
		return fmt.Errorf("get record: %w", err)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("decode record %s: %w", Key(kind, id), err)
	}
	return nil
}

// Save writes the document under (kind, id), overwriting any prior version.
func (s *Store) Save(ctx context.Context, kind, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", Key(kind, id), err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = storage.ExecWithRetry(ctx, s.db,
		`INSERT INTO records (record_key, kind, body, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(record_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		Key(kind, id), kind, string(body), now, now,
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", Key(kind, id), err)
	}
	return nil
}

// Exists reports whether a document is stored under (kind, id).
func (s *Store) Exists(ctx context.Context, kind, id string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records WHERE record_key = ?`, Key(kind, id))
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("record exists: %w", err)
	}
	return count > 0, nil
}

// GetBook fetches a book document.
func (s *Store) GetBook(ctx context.Context, id string) (*Book, error) {
	var book Book
	if err := s.Get(ctx, KindBook, id, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// SaveBook persists a book document, stamping version and timestamps.
func (s *Store) SaveBook(ctx context.Context, book *Book) error {
	stampBook(book)
	return s.Save(ctx, KindBook, book.ID, book)
}

// UpdateBook applies a read-modify-write to a book document.
func (s *Store) UpdateBook(ctx context.Context, id string, mutate func(*Book) error) (*Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(book); err != nil {
		return nil, err
	}
	if err := s.SaveBook(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// GetChapter fetches a chapter document.
func (s *Store) GetChapter(ctx context.Context, id string) (*Chapter, error) {
	var chapter Chapter
	if err := s.Get(ctx, KindChapter, id, &chapter); err != nil {
		return nil, err
	}
	return &chapter, nil
}

// SaveChapter persists a chapter document, stamping version and timestamps.
func (s *Store) SaveChapter(ctx context.Context, chapter *Chapter) error {
	stampChapter(chapter)
	return s.Save(ctx, KindChapter, chapter.ID, chapter)
}

// ChapterExists reports whether a chapter document is stored.
func (s *Store) ChapterExists(ctx context.Context, id string) (bool, error) {
	return s.Exists(ctx, KindChapter, id)
}

// UpdateChapter applies a read-modify-write to a chapter document. Safe to
// call concurrently for different ids; a given id is normally owned by one
// in-flight task at a time, and idempotent stage logic covers redelivery.
func (s *Store) UpdateChapter(ctx context.Context, id string, mutate func(*Chapter) error) (*Chapter, error) {
	chapter, err := s.GetChapter(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(chapter); err != nil {
		return nil, err
	}
	if err := s.SaveChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// GetMetadata fetches the metadata document for a book.
func (s *Store) GetMetadata(ctx context.Context, bookID string) (*Metadata, error) {
	var meta Metadata
	if err := s.Get(ctx, KindMetadata, bookID, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveMetadata persists a book's metadata document. Saved only after a
// successful fetch; existence is the once-per-book dedup signal.
func (s *Store) SaveMetadata(ctx context.Context, meta *Metadata) error {
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = DocumentVersion
	}
	now := time.Now().UTC()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	return s.Save(ctx, KindMetadata, meta.BookID, meta)
}

// MetadataExists reports whether metadata was already fetched for a book.
func (s *Store) MetadataExists(ctx context.Context, bookID string) (bool, error) {
	return s.Exists(ctx, KindMetadata, bookID)
}

// ListBooks returns all book documents ordered by creation time.
func (s *Store) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM records WHERE kind = ? ORDER BY created_at`, KindBook)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var book Book
		if err := json.Unmarshal([]byte(body), &book); err != nil {
			return nil, fmt.Errorf("decode book: %w", err)
		}
		books = append(books, &book)
	}
	return books, rows.Err()
}

// ListChaptersByBook returns a book's chapters ordered by their position in
// the publication.
func (s *Store) ListChaptersByBook(ctx context.Context, bookID string) ([]*Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM records WHERE kind = ? AND json_extract(body, '$.book_id') = ?`,
		KindChapter, bookID)
	if err != nil {
		return nil, fmt.Errorf("list chapters by book: %w", err)
	}
	defer rows.Close()

	chapters, err := scanChapters(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(chapters, func(i, j int) bool {
		return chapters[i].OrderIndex < chapters[j].OrderIndex
	})
	return chapters, nil
}

// ListChaptersByStatus returns all chapters currently in the given status,
// the read path the introspection surface uses for failure queries.
func (s *Store) ListChaptersByStatus(ctx context.Context, status stage.Status) ([]*Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM records WHERE kind = ? AND json_extract(body, '$.stage_status') = ?`,
		KindChapter, string(status))
	if err != nil {
		return nil, fmt.Errorf("list chapters by status: %w", err)
	}
	defer rows.Close()
	return scanChapters(rows)
}

// ChapterCountsByStatus aggregates chapter counts per status for health and
// status output.
func (s *Store) ChapterCountsByStatus(ctx context.Context) (map[stage.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json_extract(body, '$.stage_status'), COUNT(1)
         FROM records WHERE kind = ? GROUP BY 1`, KindChapter)
	if err != nil {
		return nil, fmt.Errorf("chapter stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[stage.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[stage.Status(status)] = count
	}
	return counts, rows.Err()
}

func scanChapters(rows *sql.Rows) ([]*Chapter, error) {
	var chapters []*Chapter
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var chapter Chapter
		if err := json.Unmarshal([]byte(body), &chapter); err != nil {
			return nil, fmt.Errorf("decode chapter: %w", err)
		}
		chapters = append(chapters, &chapter)
	}
	return chapters, rows.Err()
}

func stampBook(book *Book) {
	if book.SchemaVersion == 0 {
		book.SchemaVersion = DocumentVersion
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
}

func stampChapter(chapter *Chapter) {
	if chapter.SchemaVersion == 0 {
		chapter.SchemaVersion = DocumentVersion
	}
	now := time.Now().UTC()
	if chapter.CreatedAt.IsZero() {
		chapter.CreatedAt = now
	}
	chapter.UpdatedAt = now
}
