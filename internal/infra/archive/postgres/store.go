// Package postgres provides a Postgres-backed provenance archive with the
// same semantics as the sqlite driver: one JSONB row per plan, replaced on
// every rebuild.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tracecore/internal/archive/core"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ core.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN matches the facade defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/tracecore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store archives provenance documents in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed archive using the provided DSN (falls back
// to defaultDSN). It pings the server and ensures the document table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDocumentTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS provenance_docs (
		plan_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure provenance_docs table: %w", err)
	}
	return nil
}

// SaveDocument archives doc for the plan, replacing any earlier document.
func (s *Store) SaveDocument(ctx context.Context, planID string, doc map[string]any) error {
	if planID == "" {
		return fmt.Errorf("archive postgres: empty plan id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO provenance_docs(plan_id,payload,archived_at) VALUES($1,$2,now())
		 ON CONFLICT(plan_id) DO UPDATE SET payload=EXCLUDED.payload, archived_at=EXCLUDED.archived_at`,
		planID, payload); err != nil {
		return fmt.Errorf("upsert %s: %w", planID, err)
	}
	return nil
}

// Document returns the archived document for the plan.
func (s *Store) Document(ctx context.Context, planID string) (map[string]any, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM provenance_docs WHERE plan_id = $1`, planID).Scan(&payload)
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
func (s *Store) Driver() core.Driver { return core.DriverPostgres }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
