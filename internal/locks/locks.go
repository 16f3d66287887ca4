// Package locks provides named TTL locks over the shared SQLite database.
// A lock whose TTL has lapsed is implicitly free: the next acquirer takes it
// over without any reaper process.
package locks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chaptercast/internal/storage"
)

// Manager acquires and releases named locks.
type Manager struct {
	db *sql.DB
}

// NewManager wraps the shared database handle.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

const timeLayout = time.RFC3339Nano

// Acquire attempts to take a named lock for ttl on behalf of holder. Returns
// true when the lock was taken, false when another live holder has it.
// Re-acquiring a lock you already hold refreshes its expiry.
func (m *Manager) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	if name == "" || holder == "" {
		return false, errors.New("acquire: empty lock name or holder")
	}
	now := time.Now().UTC()
	expires := now.Add(ttl).Format(timeLayout)

	res, err := storage.ExecWithRetry(ctx, m.db,
		`INSERT INTO locks (name, holder, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE locks.expires_at <= ? OR locks.holder = excluded.holder`,
		name, holder, expires, now.Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	taken, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acquire lock %q: %w", name, err)
	}
	return taken > 0, nil
}

// Release frees a lock held by holder. Releasing a lock held by someone else,
// or not held at all, is a no-op.
func (m *Manager) Release(ctx context.Context, name, holder string) error {
	_, err := storage.ExecWithRetry(ctx, m.db,
		"DELETE FROM locks WHERE name = ? AND holder = ?",
		name, holder,
	)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", name, err)
	}
	return nil
}

// IsHeld reports whether a live (unexpired) holder has the lock.
func (m *Manager) IsHeld(ctx context.Context, name string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM locks WHERE name = ? AND expires_at > ?",
		name, time.Now().UTC().Format(timeLayout),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check lock %q: %w", name, err)
	}
	return n > 0, nil
}
