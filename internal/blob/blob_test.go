package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	t.Setenv("TRACECORE_BLOB_DRIVER", "memory")
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %s", store.Driver())
	}

	t.Setenv("TRACECORE_BLOB_DRIVER", "bogus")
	if _, err := Open(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenDefaultsToFilesystem(t *testing.T) {
	t.Setenv("TRACECORE_BLOB_DRIVER", "")
	t.Setenv("TRACECORE_BLOB_FS_ROOT", t.TempDir())
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %s", store.Driver())
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	info, err := store.Put(ctx, "1/202001/op_10/reading.csv", strings.NewReader("a,b\n"), PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != 4 || info.ContentType != "text/csv" {
		t.Fatalf("info = %+v", info)
	}

	if _, err := store.Put(ctx, "1/202001/op_10/reading.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected create-only Put to reject existing key")
	}

	_, rc, err := store.Get(ctx, "1/202001/op_10/reading.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "a,b\n" {
		t.Fatalf("content = %q", data)
	}

	infos, err := store.List(ctx, "1/202001/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "1/202001/op_10/reading.csv" {
		t.Fatalf("listing = %v", infos)
	}
}

func TestMockS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockS3ForTests()
	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}

	if _, err := store.Put(ctx, "plan/dump.json", strings.NewReader(`{}`), PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	info, rc, err := store.Get(ctx, "plan/dump.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "{}" {
		t.Fatalf("content = %q", data)
	}
	if info.ContentType != "application/json" {
		t.Fatalf("info = %+v", info)
	}
}
