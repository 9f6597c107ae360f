package memory

import (
	"context"
	"errors"
	"testing"

	"tracecore/internal/archive/core"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.SaveDocument(ctx, "101", map[string]any{"plan_id": "101"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	doc, err := store.Document(ctx, "101")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if doc["plan_id"] != "101" {
		t.Fatalf("plan_id = %v, want 101", doc["plan_id"])
	}
	if _, err := store.Document(ctx, "999"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SaveDocument(ctx, "", nil); err == nil {
		t.Fatalf("expected error for empty plan id")
	}
}

func TestArchivedStateIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if err := store.SaveDocument(ctx, "101", map[string]any{"status": "done"}); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	doc, err := store.Document(ctx, "101")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	doc["status"] = "mangled"
	again, err := store.Document(ctx, "101")
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if again["status"] != "done" {
		t.Fatalf("archived document mutated through returned map")
	}
}
