package lims

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(HTTPConfig{BaseURL: srv.URL, Token: "secret"}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestHTTPClientFetchesAndMemoizes(t *testing.T) {
	var hits atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/42.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("missing auth header, got %q", got)
		}
		hits.Add(1)
		_, _ = w.Write([]byte(`{"id": 42, "sample": {"id": 7, "name": "strain"}, "object_type": {"id": 3, "name": "tube"}}`))
	}))

	ctx := context.Background()
	first, err := client.Item(ctx, "42")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.ID != "42" || first.Sample == nil || first.Sample.Name != "strain" {
		t.Fatalf("decoded item = %+v", first)
	}
	second, err := client.Item(ctx, "42")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second != first {
		t.Fatalf("expected memoized record")
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}
}

func TestHTTPClientNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	if _, err := client.Upload(context.Background(), "9"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHTTPClientServerError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	if _, err := client.Plan(context.Background(), "1"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestHTTPClientUploadContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/5/content" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte("well,od\nA1,0.5\n"))
	}))
	data, err := client.UploadContent(context.Background(), "5")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if string(data) != "well,od\nA1,0.5\n" {
		t.Fatalf("content = %q", data)
	}
}
