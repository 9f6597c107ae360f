// Package sqlite provides a SQLite-backed provenance archive. Documents are
// stored as JSON blobs in a single table keyed by plan ID, which keeps the
// archive a plain file that can be copied alongside the uploaded data.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tracecore/internal/archive/core"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ core.Store = (*Store)(nil)

// Store archives provenance documents in a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the archive database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "tracecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS provenance_docs (
		plan_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		archived_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create provenance_docs table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// SaveDocument archives doc for the plan, replacing any earlier document.
func (s *Store) SaveDocument(ctx context.Context, planID string, doc map[string]any) error {
	if planID == "" {
		return fmt.Errorf("archive sqlite: empty plan id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	archivedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO provenance_docs(plan_id,payload,archived_at) VALUES(?,?,?)
		 ON CONFLICT(plan_id) DO UPDATE SET payload=excluded.payload, archived_at=excluded.archived_at`,
		planID, payload, archivedAt); err != nil {
		return fmt.Errorf("upsert %s: %w", planID, err)
	}
	return nil
}

// Document returns the archived document for the plan.
func (s *Store) Document(ctx context.Context, planID string) (map[string]any, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM provenance_docs WHERE plan_id = ?`, planID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", planID, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", planID, err)
	}
	return doc, nil
}

// Plans lists archived plan IDs in ascending order.
func (s *Store) Plans(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT plan_id FROM provenance_docs ORDER BY plan_id`)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var plans []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Driver reports the backend kind.
func (s *Store) Driver() core.Driver { return core.DriverSQLite }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
