package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"tracecore/internal/blob/core"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestPutGetHead(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	info, err := store.Put(ctx, "1/202001/op_10/data.fcs", strings.NewReader("payload"), core.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"upload_id": "50"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("payload")) || info.ETag == "" {
		t.Fatalf("info = %+v", info)
	}

	head, err := store.Head(ctx, "1/202001/op_10/data.fcs")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.ContentType != "application/octet-stream" || head.Metadata["upload_id"] != "50" {
		t.Fatalf("head = %+v", head)
	}

	_, rc, err := store.Get(ctx, "1/202001/op_10/data.fcs")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}
}

func TestPutRejectsExistingKey(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("b"), core.PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}
}

func TestSanitizeKey(t *testing.T) {
	for _, key := range []string{"", "  ", "../escape", "a/../../b", "/absolute"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Errorf("expected rejection of key %q", key)
		}
	}
	if _, err := sanitizeKey("1/op_10/file.csv"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestListFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	for _, key := range []string{"1/a.csv", "1/b.csv", "2/c.csv"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "1/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "1/a.csv" || infos[1].Key != "1/b.csv" {
		t.Fatalf("listing = %v", infos)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if _, err := store.Put(ctx, "k", strings.NewReader("a"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ok, err := store.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	ok, err = store.Delete(ctx, "k")
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v", ok, err)
	}
}
