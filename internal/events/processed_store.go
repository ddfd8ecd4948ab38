// Package events de-duplicates inbound webhook events.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProviderMessenger is the provider name of Messenger message ids.
const ProviderMessenger = "messenger"

// DefaultRetention is how long an event id is remembered.
const DefaultRetention = 24 * time.Hour

// Deduper remembers event ids so redelivered webhooks are handled once.
// Callers check Seen, handle the event, then MarkProcessed it.
type Deduper interface {
	// Seen reports whether the id was marked within the retention window.
	Seen(ctx context.Context, provider, eventID string) (bool, error)
	// MarkProcessed records the id and reports whether it was new.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// An existing row only counts as a duplicate while it is younger than the
// retention window; stale rows are refreshed and reported as new.
const markProcessedSQL = `
	INSERT INTO processed_events (provider, event_id, processed_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (provider, event_id) DO UPDATE
		SET processed_at = EXCLUDED.processed_at
		WHERE processed_events.processed_at < $4
`

const seenProcessedSQL = `
	SELECT EXISTS (
		SELECT 1 FROM processed_events
		WHERE provider = $1 AND event_id = $2 AND processed_at >= $3
	)
`

const purgeProcessedSQL = `DELETE FROM processed_events WHERE processed_at < $1`

// PostgresDeduper keeps event ids in the processed_events table.
type PostgresDeduper struct {
	db        execer
	retention time.Duration
	now       func() time.Time
}

var _ Deduper = (*PostgresDeduper)(nil)

// NewPostgresDeduper panics on a nil pool; retention <= 0 means DefaultRetention.
func NewPostgresDeduper(pool *pgxpool.Pool, retention time.Duration) *PostgresDeduper {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newPostgresDeduper(pool, retention)
}

func newPostgresDeduper(db execer, retention time.Duration) *PostgresDeduper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PostgresDeduper{db: db, retention: retention, now: time.Now}
}

func (d *PostgresDeduper) Seen(ctx context.Context, provider, eventID string) (bool, error) {
	var seen bool
	cutoff := d.now().UTC().Add(-d.retention)
	if err := d.db.QueryRow(ctx, seenProcessedSQL, provider, eventID, cutoff).Scan(&seen); err != nil {
		return false, fmt.Errorf("events: check %s/%s: %w", provider, eventID, err)
	}
	return seen, nil
}

func (d *PostgresDeduper) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	now := d.now().UTC()
	tag, err := d.db.Exec(ctx, markProcessedSQL, provider, eventID, now, now.Add(-d.retention))
	if err != nil {
		return false, fmt.Errorf("events: mark %s/%s: %w", provider, eventID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Purge deletes ids older than the retention window and returns how many went.
func (d *PostgresDeduper) Purge(ctx context.Context) (int64, error) {
	tag, err := d.db.Exec(ctx, purgeProcessedSQL, d.now().UTC().Add(-d.retention))
	if err != nil {
		return 0, fmt.Errorf("events: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MemoryDeduper keeps event ids in memory for a retention window.
type MemoryDeduper struct {
	mu        sync.Mutex
	retention time.Duration
	now       func() time.Time
	seen      map[string]time.Time
}

var _ Deduper = (*MemoryDeduper)(nil)

// NewMemoryDeduper forgets ids after retention; zero means DefaultRetention.
func NewMemoryDeduper(retention time.Duration) *MemoryDeduper {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryDeduper{retention: retention, now: time.Now, seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) Seen(_ context.Context, provider, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[provider+":"+eventID]
	return ok && d.now().Sub(at) <= d.retention, nil
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, at := range d.seen {
		if now.Sub(at) > d.retention {
			delete(d.seen, k)
		}
	}
	key := provider + ":" + eventID
	if _, ok := d.seen[key]; ok {
		return false, nil
	}
	d.seen[key] = now
	return true, nil
}
