// Package core defines the provenance archive contract shared by the
// archive facade and its storage drivers. Rendered provenance documents
// are persisted per plan so a run can be replayed without refetching the
// upstream inventory system.
package core

import (
	"context"
	"errors"
)

// Driver identifies an archive backend implementation.
type Driver string

const (
	// DriverSQLite stores documents in a local SQLite database file.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores documents in a Postgres database.
	DriverPostgres Driver = "postgres"
	// DriverMemory stores documents in process memory (tests, dry runs).
	DriverMemory Driver = "memory"
)

// ErrNotFound is returned when no document has been archived for a plan.
var ErrNotFound = errors.New("archive: document not found")

// Store persists rendered provenance documents keyed by plan ID.
// SaveDocument replaces any previously archived document for the plan;
// rebuilding a trace is expected to refresh its archive entry.
type Store interface {
	// SaveDocument archives the rendered document for the plan.
	SaveDocument(ctx context.Context, planID string, doc map[string]any) error
	// Document returns the archived document for the plan, or ErrNotFound.
	Document(ctx context.Context, planID string) (map[string]any, error)
	// Plans lists the archived plan IDs in ascending order.
	Plans(ctx context.Context) ([]string, error)
	// Close releases the backing resources.
	Close() error
	// Driver reports which backend the store uses.
	Driver() Driver
}
