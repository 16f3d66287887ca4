// Package queue implements the per-channel task queue on top of the shared
// SQLite database. Delivery is at-least-once: a dequeued task is claimed
// under a lease, and a claim whose lease lapses before Ack becomes available
// again for redelivery.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"chaptercast/internal/storage"
)

// Channel names one stage queue. Each pipeline stage consumes exactly one
// channel.
type Channel string

const (
	ChannelDiscover   Channel = "discover"
	ChannelMetadata   Channel = "metadata"
	ChannelChapter    Channel = "chapter"
	ChannelSynthesize Channel = "synthesize"
	ChannelConvert    Channel = "convert"
	ChannelComplete   Channel = "complete"
	ChannelSync       Channel = "sync"
)

// Channels lists every channel in pipeline order.
func Channels() []Channel {
	return []Channel{
		ChannelDiscover,
		ChannelMetadata,
		ChannelChapter,
		ChannelSynthesize,
		ChannelConvert,
		ChannelComplete,
		ChannelSync,
	}
}

// Task is one claimed unit of work. UnitID names the record the stage
// operates on; everything else about the unit is re-read from the record
// store, never trusted from the message.
type Task struct {
	ID       int64
	Channel  Channel
	UnitID   string
	Stage    string
	Attempts int

	claimToken string
}

// Broker publishes and claims tasks.
type Broker struct {
	db *sql.DB
}

// NewBroker wraps the shared database handle.
func NewBroker(db *sql.DB) *Broker {
	return &Broker{db: db}
}

const timeLayout = time.RFC3339Nano

func now() time.Time {
	return time.Now().UTC()
}

// Publish enqueues a task on a channel. A positive delay keeps the task
// invisible to consumers until it elapses.
func (b *Broker) Publish(ctx context.Context, ch Channel, unitID string, delay time.Duration) error {
	if unitID == "" {
		return errors.New("publish: empty unit id")
	}
	availableAt := now().Add(delay)
	_, err := storage.ExecWithRetry(ctx, b.db,
		`INSERT INTO tasks (channel, unit_id, stage, available_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(ch), unitID, string(ch),
		availableAt.Format(timeLayout), now().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", ch, err)
	}
	return nil
}

// Dequeue claims the oldest available task on a channel for the given lease
// duration. Returns (nil, nil) when the channel has nothing ready. Tasks
// whose previous claim's lease has expired are claimable again.
func (b *Broker) Dequeue(ctx context.Context, ch Channel, lease time.Duration) (*Task, error) {
	token := uuid.NewString()
	nowStr := now().Format(timeLayout)
	leaseUntil := now().Add(lease).Format(timeLayout)

	res, err := storage.ExecWithRetry(ctx, b.db,
		`UPDATE tasks
		 SET claim_token = ?, lease_expires_at = ?, attempts = attempts + 1
		 WHERE id = (
		     SELECT id FROM tasks
		     WHERE channel = ?
		       AND available_at <= ?
		       AND (claim_token IS NULL OR lease_expires_at <= ?)
		     ORDER BY id
		     LIMIT 1
		 )`,
		token, leaseUntil, string(ch), nowStr, nowStr,
	)
	if err != nil {
		return nil, fmt.Errorf("claim task on %s: %w", ch, err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim task on %s: %w", ch, err)
	}
	if claimed == 0 {
		return nil, nil
	}

	task := &Task{Channel: ch, claimToken: token}
	err = b.db.QueryRowContext(ctx,
		"SELECT id, unit_id, stage, attempts FROM tasks WHERE claim_token = ?",
		token,
	).Scan(&task.ID, &task.UnitID, &task.Stage, &task.Attempts)
	if err != nil {
		return nil, fmt.Errorf("read claimed task on %s: %w", ch, err)
	}
	return task, nil
}

// Ack removes a claimed task. Acking after the lease was lost (another
// consumer reclaimed the task) is a no-op.
func (b *Broker) Ack(ctx context.Context, task *Task) error {
	_, err := storage.ExecWithRetry(ctx, b.db,
		"DELETE FROM tasks WHERE id = ? AND claim_token = ?",
		task.ID, task.claimToken,
	)
	if err != nil {
		return fmt.Errorf("ack task %d: %w", task.ID, err)
	}
	return nil
}

// Release returns a claimed task to its channel without acking, optionally
// delayed. Used when the consumer cannot make progress and wants redelivery.
func (b *Broker) Release(ctx context.Context, task *Task, delay time.Duration) error {
	availableAt := now().Add(delay).Format(timeLayout)
	_, err := storage.ExecWithRetry(ctx, b.db,
		`UPDATE tasks
		 SET claim_token = NULL, lease_expires_at = NULL, available_at = ?
		 WHERE id = ? AND claim_token = ?`,
		availableAt, task.ID, task.claimToken,
	)
	if err != nil {
		return fmt.Errorf("release task %d: %w", task.ID, err)
	}
	return nil
}

// Depth reports how many tasks sit on a channel, claimed or not.
func (b *Broker) Depth(ctx context.Context, ch Channel) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM tasks WHERE channel = ?", string(ch),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("depth of %s: %w", ch, err)
	}
	return n, nil
}

// Depths reports the depth of every channel in one query.
func (b *Broker) Depths(ctx context.Context) (map[Channel]int, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT channel, COUNT(1) FROM tasks GROUP BY channel")
	if err != nil {
		return nil, fmt.Errorf("channel depths: %w", err)
	}
	defer rows.Close()

	depths := make(map[Channel]int)
	for rows.Next() {
		var ch string
		var n int
		if err := rows.Scan(&ch, &n); err != nil {
			return nil, fmt.Errorf("channel depths: %w", err)
		}
		depths[Channel(ch)] = n
	}
	return depths, rows.Err()
}
