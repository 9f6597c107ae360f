package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"tracecore/internal/blob/core"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := New()

	if _, err := store.Put(ctx, "1/dump.json", strings.NewReader(`{}`), core.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "1/dump.json", strings.NewReader(`{}`), core.PutOptions{}); err == nil {
		t.Fatal("expected duplicate key rejection")
	}

	info, rc, err := store.Get(ctx, "1/dump.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "{}" || info.ContentType != "application/json" {
		t.Fatalf("content %q info %+v", data, info)
	}

	if _, _, err := store.Get(ctx, "missing"); err == nil {
		t.Fatal("expected error for missing key")
	}

	infos, err := store.List(ctx, "1/")
	if err != nil || len(infos) != 1 {
		t.Fatalf("List = %v, %v", infos, err)
	}

	ok, _ := store.Delete(ctx, "1/dump.json")
	if !ok {
		t.Fatal("Delete should report existing key")
	}
}
