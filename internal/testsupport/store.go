package testsupport

import (
	"database/sql"
	"testing"

	"chaptercast/internal/config"
	"chaptercast/internal/records"
	"chaptercast/internal/storage"
)

// MustOpenDB opens the pipeline database for a test config and registers
// cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *sql.DB {
	t.Helper()

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// MustOpenStore opens the record store backed by a fresh test database.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()
	return records.NewStore(MustOpenDB(t, cfg))
}
