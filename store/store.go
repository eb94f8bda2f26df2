// Package store persists discovered products and research run events in
// SQLite. The cache lets repeat searches for the same product skip the
// full research pipeline; the event log is an audit trail of runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/scout/dbopen"
	"github.com/hazyhaar/scout/idgen"
	"github.com/hazyhaar/scout/product"
	"github.com/hazyhaar/scout/research"
)

// Schema is the full store schema. Passed to dbopen at open time.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	product_key   TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	brand         TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	quality_score INTEGER NOT NULL DEFAULT 0,
	doc           TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS review_sources (
	product_key TEXT NOT NULL REFERENCES products(product_key) ON DELETE CASCADE,
	url         TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT 'other',
	created_at  INTEGER NOT NULL,
	PRIMARY KEY (product_key, url)
);

CREATE TABLE IF NOT EXISTS run_events (
	event_id   TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	query      TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	success    INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, created_at);
`

// ErrNotFound is returned by Get when no cached product matches the key.
var ErrNotFound = errors.New("store: product not found")

// Store wraps the SQLite database.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom ID generator for event IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store over an already-opened database. The schema must
// have been applied, typically via dbopen.WithSchema(store.Schema).
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens (or creates) the store database at path.
func Open(path string) (*Store, *sql.DB, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}
	return New(db), db, nil
}

// Put upserts a product and its review sources. Source URLs are deduped
// by the primary key; re-discovering a known source is a no-op.
func (s *Store) Put(ctx context.Context, p product.Product, sources []research.RawSource) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal product: %w", err)
	}
	key := product.Key(p.Brand, p.Name)
	now := time.Now().Unix()

	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (product_key, name, brand, category, quality_score, doc, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(product_key) DO UPDATE SET
				category = excluded.category,
				quality_score = excluded.quality_score,
				doc = excluded.doc,
				updated_at = excluded.updated_at`,
			key, p.Name, p.Brand, p.Category, p.QualityScore, string(doc), now, now)
		if err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
		for _, src := range sources {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO review_sources (product_key, url, title, source_type, created_at)
				VALUES (?,?,?,?,?)
				ON CONFLICT(product_key, url) DO NOTHING`,
				key, src.URL, src.Title, string(src.Type), now)
			if err != nil {
				return fmt.Errorf("insert source: %w", err)
			}
		}
		return nil
	})
}

// Get returns the cached product for a normalized brand+name key.
func (s *Store) Get(ctx context.Context, brand, name string) (*product.Product, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM products WHERE product_key = ?`,
		product.Key(brand, name)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	var p product.Product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("store: unmarshal product: %w", err)
	}
	return &p, nil
}

// Sources returns the known review sources for a product, newest first.
func (s *Store) Sources(ctx context.Context, brand, name string) ([]research.RawSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, title, source_type FROM review_sources
		WHERE product_key = ? ORDER BY created_at DESC, url`,
		product.Key(brand, name))
	if err != nil {
		return nil, fmt.Errorf("store: sources: %w", err)
	}
	defer rows.Close()

	var out []research.RawSource
	for rows.Next() {
		var src research.RawSource
		var typ string
		if err := rows.Scan(&src.URL, &src.Title, &typ); err != nil {
			return nil, fmt.Errorf("store: scan source: %w", err)
		}
		src.Type = research.SourceType(typ)
		out = append(out, src)
	}
	return out, rows.Err()
}

// RunEvent is one audit record for a pipeline run stage.
type RunEvent struct {
	RunID   string
	Stage   string
	Query   string
	Detail  string
	Success bool
}

// LogEvent records a run event. Errors are returned so the background
// writer can log them; callers on the hot path use the Writer instead.
func (s *Store) LogEvent(ctx context.Context, ev RunEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_events (event_id, run_id, stage, query, detail, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		s.newID(), ev.RunID, ev.Stage, ev.Query, ev.Detail, ev.Success, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store: log event: %w", err)
	}
	return nil
}

// Events returns all events for a run in insertion order.
func (s *Store) Events(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, query, detail, success FROM run_events
		WHERE run_id = ? ORDER BY created_at, event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: events: %w", err)
	}
	defer rows.Close()

	var out []RunEvent
	for rows.Next() {
		var ev RunEvent
		if err := rows.Scan(&ev.RunID, &ev.Stage, &ev.Query, &ev.Detail, &ev.Success); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
