// Package localstore is the field client's durable on-device store: a small
// SQLite database holding the offline submission queue, cached reference
// data, and the single in-progress draft.
//
// ────────────────────────────────────────────────────────────────────
// LEARNING NOTE — why SQLite and not a JSON file?
// ────────────────────────────────────────────────────────────────────
// The queue must survive process kills mid-write. SQLite gives atomic
// row-level writes for free; a rewritten-in-place JSON file does not.
// Values are still stored as JSON blobs inside the rows — the store never
// inspects payloads, it only orders and persists them.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storecheck/internal/models"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a queue entry or cache key does not exist.
var ErrNotFound = errors.New("localstore: not found")

// draftKey is the reserved cache key holding the single authoring draft.
const draftKey = "draft:current"

const schema = `
CREATE TABLE IF NOT EXISTS pending_visits (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store wraps the client database. Safe for concurrent use; database/sql
// serializes access across its connection pool.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the client database at the given DSN and
// applies the schema.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("localstore: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// ---- Offline submission queue ----

// Enqueue persists an offline visit at the tail of the queue. The entry's ID
// must carry models.OfflineIDPrefix; Enqueue enforces it so a server id can
// never end up queued.
func (s *Store) Enqueue(ctx context.Context, v models.OfflineVisit) error {
	if len(v.ID) <= len(models.OfflineIDPrefix) || v.ID[:len(models.OfflineIDPrefix)] != models.OfflineIDPrefix {
		return fmt.Errorf("localstore: queue id %q must start with %q", v.ID, models.OfflineIDPrefix)
	}
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localstore: marshal visit: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_visits (id, payload, created_at) VALUES (?, ?, ?)`,
		v.ID, string(blob), v.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("localstore: enqueue: %w", err)
	}
	return nil
}

// Pending returns all queued visits in capture order (oldest first). The
// sync engine drains them in exactly this order.
func (s *Store) Pending(ctx context.Context) ([]models.OfflineVisit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM pending_visits ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("localstore: pending: %w", err)
	}
	defer rows.Close()

	visits := []models.OfflineVisit{}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var v models.OfflineVisit
		if err := json.Unmarshal([]byte(blob), &v); err != nil {
			return nil, fmt.Errorf("localstore: corrupt queue entry: %w", err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Get loads one queued visit by id.
func (s *Store) Get(ctx context.Context, id string) (models.OfflineVisit, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM pending_visits WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OfflineVisit{}, ErrNotFound
	}
	if err != nil {
		return models.OfflineVisit{}, err
	}
	var v models.OfflineVisit
	if err := json.Unmarshal([]byte(blob), &v); err != nil {
		return models.OfflineVisit{}, fmt.Errorf("localstore: corrupt queue entry: %w", err)
	}
	return v, nil
}

// Remove deletes a queued visit after a successful sync. Removing a missing
// id returns ErrNotFound so double-drains surface as bugs, not silence.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_visits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("localstore: remove: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// QueueLen reports the number of entries waiting to sync.
func (s *Store) QueueLen(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_visits`).Scan(&n)
	return n, err
}

// ---- Reference-data cache ----

// PutCache stores v as JSON under key, replacing any previous value.
// Callers version their keys (e.g. "template:v2") so shape changes
// invalidate stale entries by key miss rather than by migration.
func (s *Store) PutCache(ctx context.Context, key string, v any) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localstore: marshal cache value: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("localstore: put cache: %w", err)
	}
	return nil
}

// GetCache loads the JSON value under key into out. Returns ErrNotFound on a
// key miss.
func (s *Store) GetCache(ctx context.Context, key string, out any) error {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return fmt.Errorf("localstore: corrupt cache entry %q: %w", key, err)
	}
	return nil
}

// DeleteCache removes a cache entry. Deleting a missing key is not an error.
func (s *Store) DeleteCache(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE key = ?`, key)
	return err
}

// ---- Draft slot ----

// SaveDraft overwrites the single in-progress draft. There is deliberately
// one slot: the authoring flow edits one visit at a time, and "which draft?"
// is a question field users should never face.
func (s *Store) SaveDraft(ctx context.Context, d models.DraftState) error {
	return s.PutCache(ctx, draftKey, d)
}

// LoadDraft returns the saved draft, or ErrNotFound when none exists.
func (s *Store) LoadDraft(ctx context.Context) (models.DraftState, error) {
	var d models.DraftState
	if err := s.GetCache(ctx, draftKey, &d); err != nil {
		return models.DraftState{}, err
	}
	return d, nil
}

// ClearDraft removes the draft after a terminal submission.
func (s *Store) ClearDraft(ctx context.Context) error {
	return s.DeleteCache(ctx, draftKey)
}
