package records

import (
	"fmt"
	"time"

	"chaptercast/internal/stage"
)

// DocumentVersion is stamped into every persisted document so future schema
// additions can default missing fields on read.
const DocumentVersion = 1

// Entity kinds used in record keys ("{entity_type}:{id}").
const (
	KindBook     = "book"
	KindChapter  = "chapter"
	KindMetadata = "metadata"
)

// Book is the discovery-owned record for a publication. It is created when
// discovery starts and only ever superseded by re-discovery, never deleted.
type Book struct {
	SchemaVersion int          `json:"schema_version"`
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	ShortName     string       `json:"short_name"`
	SourceURL     string       `json:"source_url"`
	MetadataURL   string       `json:"metadata_url,omitempty"`
	StartURL      string       `json:"start_url,omitempty"`
	EndURL        string       `json:"end_url,omitempty"`
	Status        stage.Status `json:"stage_status"`
	ChapterIDs    []string     `json:"chapter_ids"`
	RetryCount    int          `json:"retry_count"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Name returns the operator-facing book name used for artifact paths: the
// short name when one was supplied, the scraped title otherwise.
func (b *Book) Name() string {
	if b.ShortName != "" {
		return b.ShortName
	}
	return b.Title
}

// HasChapter reports whether a chapter id is already linked to the book.
func (b *Book) HasChapter(chapterID string) bool {
	for _, id := range b.ChapterIDs {
		if id == chapterID {
			return true
		}
	}
	return false
}

// LinkChapter appends a chapter id, preserving existing entries. Re-discovery
// merges: existing ids are untouched, new ones appended.
func (b *Book) LinkChapter(chapterID string) {
	if !b.HasChapter(chapterID) {
		b.ChapterIDs = append(b.ChapterIDs, chapterID)
	}
}

// Chapter is the central processing record: one per content unit, keyed by
// the deterministic hash of (title, url).
type Chapter struct {
	SchemaVersion int               `json:"schema_version"`
	ID            string            `json:"id"`
	BookID        string            `json:"book_id"`
	OrderIndex    int               `json:"order_index"`
	Title         string            `json:"title"`
	URL           string            `json:"url"`
	StageStatus   stage.Status      `json:"stage_status"`
	StageOutputs  map[string]string `json:"stage_outputs,omitempty"`
	RetryCount    int               `json:"retry_count"`
	LastError     string            `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Output returns the artifact reference a stage produced, or "".
func (c *Chapter) Output(stageName string) string {
	return c.StageOutputs[stageName]
}

// SetOutput records a stage's artifact reference. An output is set exactly
// once; a conflicting overwrite is an error, a matching rewrite is a no-op.
func (c *Chapter) SetOutput(stageName, ref string) error {
	if existing, ok := c.StageOutputs[stageName]; ok {
		if existing == ref {
			return nil
		}
		return fmt.Errorf("stage output %q already set to %q", stageName, existing)
	}
	if c.StageOutputs == nil {
		c.StageOutputs = make(map[string]string, 4)
	}
	c.StageOutputs[stageName] = ref
	return nil
}

// Advance moves the chapter forward to a later status, resetting per-stage
// retry accounting and clearing the last failure detail.
func (c *Chapter) Advance(to stage.Status) error {
	if !stage.CanAdvance(c.StageStatus, to) {
		return fmt.Errorf("illegal transition %s -> %s", c.StageStatus, to)
	}
	c.StageStatus = to
	c.RetryCount = 0
	c.LastError = ""
	return nil
}

// Reset returns a failed chapter to pending so an operator can re-drive it
// through the pipeline. Stage outputs are kept: deterministic artifact paths
// make redone stages land on the same files.
func (c *Chapter) Reset() {
	c.StageStatus = stage.StatusPending
	c.RetryCount = 0
	c.LastError = ""
}

// Fail marks the chapter permanently failed, retaining the failure detail
// for the introspection path.
func (c *Chapter) Fail(message string) {
	c.StageStatus = stage.StatusFailed
	c.LastError = message
}

// Metadata holds the descriptive fields fetched once per book. Its existence
// as a saved record is the dedup signal: it is only persisted after a
// successful fetch.
type Metadata struct {
	SchemaVersion int       `json:"schema_version"`
	BookID        string    `json:"book_id"`
	Title         string    `json:"title,omitempty"`
	Author        string    `json:"author,omitempty"`
	Genre         string    `json:"genre,omitempty"`
	Synopsis      string    `json:"synopsis,omitempty"`
	CoverURL      string    `json:"cover_url,omitempty"`
	CoverPath     string    `json:"cover_path,omitempty"`
	ReleasedYear  string    `json:"released_year,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
