package s3

import (
	"context"
	"io"
	"strings"
	"testing"

	"tracecore/internal/blob/core"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected bucket requirement error")
	}
}

func TestOpenFromEnvRequiresBucket(t *testing.T) {
	t.Setenv("TRACECORE_BLOB_S3_BUCKET", "")
	if _, err := OpenFromEnv(context.Background()); err == nil {
		t.Fatal("expected error without bucket env")
	}
}

func TestMockPutGetList(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("driver = %s", store.Driver())
	}

	if _, err := store.Put(ctx, "1/op_10/reading.csv", strings.NewReader("a,b\n"), core.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "1/op_10/reading.csv", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatal("expected duplicate key rejection")
	}

	_, rc, err := store.Get(ctx, "1/op_10/reading.csv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "a,b\n" {
		t.Fatalf("content = %q", data)
	}

	infos, err := store.List(ctx, "1/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "1/op_10/reading.csv" {
		t.Fatalf("listing = %v", infos)
	}

	if ok, err := store.Delete(ctx, "1/op_10/reading.csv"); err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
}
