package archive

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("TRACECORE_ARCHIVE_DRIVER", string(DriverMemory))
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s, want memory", store.Driver())
	}

	t.Setenv("TRACECORE_ARCHIVE_DRIVER", "bogus")
	if _, err := Open(ctx); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	t.Setenv("TRACECORE_ARCHIVE_DRIVER", "")
	t.Setenv("TRACECORE_ARCHIVE_PATH", filepath.Join(t.TempDir(), "trace.db"))
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Driver() != DriverSQLite {
		t.Fatalf("driver = %s, want sqlite", store.Driver())
	}
	if err := store.SaveDocument(context.Background(), "101", map[string]any{"plan_id": "101"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
}
