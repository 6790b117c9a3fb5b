package history

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthview/hearthview-core/internal/dashboard"
	"github.com/hearthview/hearthview-core/internal/infrastructure/database"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	defaultMaxEntries = 10000

	// pruneEvery controls how often the opportunistic prune runs,
	// counted in inserts.
	pruneEvery = 256
)

// schema is created on construction. Additive-only; the recorder owns this
// table exclusively.
const schema = `
CREATE TABLE IF NOT EXISTS state_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_id  TEXT NOT NULL,
    category   TEXT NOT NULL,
    state      TEXT NOT NULL,
    previous   TEXT NOT NULL DEFAULT '',
    area       TEXT NOT NULL DEFAULT '',
    changed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_state_history_entity
    ON state_history(entity_id, changed_at);
CREATE INDEX IF NOT EXISTS idx_state_history_changed
    ON state_history(changed_at);
`

// Entry is one recorded state transition.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EntityID is the device display name.
	EntityID string `json:"entity_id"`

	// Category is the dashboard category the entity belonged to when the
	// transition was observed.
	Category string `json:"category"`

	// State is the new state value.
	State string `json:"state"`

	// Previous is the prior state value, empty for first observations.
	Previous string `json:"previous,omitempty"`

	// Area is the room or zone, when reported.
	Area string `json:"area,omitempty"`

	// ChangedAt is when the transition was observed (UTC).
	ChangedAt time.Time `json:"changed_at"`
}

// Recorder persists observed state transitions to SQLite so the dashboard
// can show recent activity. The live cache itself stays memory-only; this
// table is the only durable state the service keeps about devices.
//
// All methods are safe for concurrent use; writes serialize on the SQLite
// connection.
type Recorder struct {
	db         *database.DB
	maxEntries int

	// inserts counts Record calls to schedule opportunistic pruning.
	// Approximate under concurrency, which is fine for a prune heuristic.
	inserts int
}

// NewRecorder creates a recorder and ensures its schema exists. maxEntries
// bounds the table; zero means the default bound.
func NewRecorder(db *database.DB, maxEntries int) (*Recorder, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &Recorder{db: db, maxEntries: maxEntries}, nil
}

// Record persists one state transition.
func (r *Recorder) Record(ctx context.Context, ch dashboard.Change) error {
	if ch.Entity.ID == "" {
		return fmt.Errorf("entity id is required")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history (entity_id, category, state, previous, area, changed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ch.Entity.ID,
		ch.Category,
		ch.Entity.State,
		ch.Previous,
		ch.Entity.Area,
		ch.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	r.inserts++
	if r.inserts%pruneEvery == 0 {
		if err := r.prune(ctx); err != nil {
			return fmt.Errorf("pruning state history: %w", err)
		}
	}
	return nil
}

// History returns recent transitions for one entity, newest first. The
// limit defaults to 50 and is clamped to 200.
func (r *Recorder) History(ctx context.Context, entityID string, limit int) ([]Entry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id is required")
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_id, category, state, previous, area, changed_at
		 FROM state_history
		 WHERE entity_id = ?
		 ORDER BY changed_at DESC, id DESC
		 LIMIT ?`,
		entityID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the latest transitions across all entities, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity_id, category, state, previous, area, changed_at
		 FROM state_history
		 ORDER BY changed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the current table size.
func (r *Recorder) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM state_history").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting state history: %w", err)
	}
	return n, nil
}

// prune deletes the oldest rows past the configured bound.
func (r *Recorder) prune(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM state_history WHERE id NOT IN (
		     SELECT id FROM state_history ORDER BY id DESC LIMIT ?
		 )`,
		r.maxEntries,
	)
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows rowScanner) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EntityID, &e.Category, &e.State, &e.Previous, &e.Area, &e.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history rows: %w", err)
	}
	return entries, nil
}
