// Package archive is the facade over the provenance archive backends. The
// rest of the codebase depends on this package only; concrete drivers live
// under internal/infra/archive.
package archive

import (
	"context"
	"fmt"
	"os"

	"tracecore/internal/archive/core"
	"tracecore/internal/infra/archive/memory"
	"tracecore/internal/infra/archive/postgres"
	"tracecore/internal/infra/archive/sqlite"
)

// Driver selects an archive backend.
type Driver = core.Driver

const (
	DriverSQLite   = core.DriverSQLite
	DriverPostgres = core.DriverPostgres
	DriverMemory   = core.DriverMemory
)

// Store persists rendered provenance documents keyed by plan ID.
type Store = core.Store

// ErrNotFound is returned when no document has been archived for a plan.
var ErrNotFound = core.ErrNotFound

// NewSQLite constructs a SQLite-backed archive at path.
func NewSQLite(path string) (Store, error) { return sqlite.NewStore(path) }

// NewPostgres constructs a Postgres-backed archive from the DSN.
func NewPostgres(ctx context.Context, dsn string) (Store, error) { return postgres.NewStore(ctx, dsn) }

// NewMemory constructs an in-memory archive.
func NewMemory() Store { return memory.NewStore() }

// Open selects an archive backend from the environment.
//
//	TRACECORE_ARCHIVE_DRIVER  sqlite (default) | postgres | memory
//	TRACECORE_ARCHIVE_PATH    sqlite database path
//	TRACECORE_ARCHIVE_DSN     postgres connection string
func Open(ctx context.Context) (Store, error) {
	driver := Driver(os.Getenv("TRACECORE_ARCHIVE_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite:
		return NewSQLite(os.Getenv("TRACECORE_ARCHIVE_PATH"))
	case DriverPostgres:
		return NewPostgres(ctx, os.Getenv("TRACECORE_ARCHIVE_DSN"))
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", driver)
	}
}
