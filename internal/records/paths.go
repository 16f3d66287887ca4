package records

import (
	"path/filepath"

	"chaptercast/internal/identity"
)

// Layout derives the deterministic artifact paths under the staging
// directory. Paths depend only on book and chapter names, so re-running a
// stage lands on the same file.
type Layout struct {
	StagingDir string
}

// NewLayout builds a Layout rooted at the configured staging directory.
func NewLayout(stagingDir string) Layout {
	return Layout{StagingDir: stagingDir}
}

func (l Layout) chapterFile(kind, bookName, chapterTitle, ext string) string {
	return filepath.Join(l.StagingDir, kind, identity.Slug(bookName), identity.Slug(chapterTitle)+ext)
}

// TextPath is where the chapter stage writes scraped text.
func (l Layout) TextPath(bookName, chapterTitle string) string {
	return l.chapterFile("txt", bookName, chapterTitle, ".txt")
}

// AudioPath is where the synthesize stage writes speech audio.
func (l Layout) AudioPath(bookName, chapterTitle string) string {
	return l.chapterFile("wav", bookName, chapterTitle, ".wav")
}

// SubtitlePath is where the convert stage writes the SRT track.
func (l Layout) SubtitlePath(bookName, chapterTitle string) string {
	return l.chapterFile("srt", bookName, chapterTitle, ".srt")
}

// VideoPath is where the convert stage writes the muxed output.
func (l Layout) VideoPath(bookName, chapterTitle string) string {
	return l.chapterFile("mp4", bookName, chapterTitle, ".mp4")
}

// CoverPath is where the metadata stage stores the downloaded cover image.
func (l Layout) CoverPath(bookName string) string {
	return filepath.Join(l.StagingDir, "cover", identity.Slug(bookName)+".jpg")
}

// SyncSources lists the per-book directories the sync stage pushes to the
// remote destination.
func (l Layout) SyncSources(bookName string) []string {
	slug := identity.Slug(bookName)
	return []string{
		filepath.Join(l.StagingDir, "mp4", slug),
		filepath.Join(l.StagingDir, "srt", slug),
		filepath.Join(l.StagingDir, "cover", slug+".jpg"),
	}
}
