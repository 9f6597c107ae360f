package lims

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tracecore/internal/metrics"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Cache wraps a Client with a persistent SQLite record cache. Records are
// stored as JSON payloads keyed by resource and ID, so repeated builds of
// the same experiment can run without touching the inventory API.
//
// Upload content is cached alongside metadata records under its own
// resource key.
type Cache struct {
	inner Client
	db    *sql.DB
	log   *slog.Logger
	rec   metrics.Recorder
}

// OpenCache opens or creates the cache database at path and wraps the given
// client.
func OpenCache(path string, inner Client, log *slog.Logger) (*Cache, error) {
	if path == "" {
		path = "tracecore-cache.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create cache dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		resource TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (resource, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create records table: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{inner: inner, db: db, log: log, rec: metrics.Nop{}}, nil
}

// WithRecorder sets the metrics recorder and returns the cache.
func (c *Cache) WithRecorder(rec metrics.Recorder) *Cache {
	if rec != nil {
		c.rec = rec
	}
	return c
}

// Close releases the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Plan implements Client.
func (c *Cache) Plan(ctx context.Context, id string) (*Plan, error) {
	return cached(ctx, c, "plans", id, c.inner.Plan)
}

// Item implements Client.
func (c *Cache) Item(ctx context.Context, id string) (*Item, error) {
	return cached(ctx, c, "items", id, c.inner.Item)
}

// Collection implements Client.
func (c *Cache) Collection(ctx context.Context, id string) (*Collection, error) {
	return cached(ctx, c, "collections", id, c.inner.Collection)
}

// Job implements Client.
func (c *Cache) Job(ctx context.Context, id string) (*Job, error) {
	return cached(ctx, c, "jobs", id, c.inner.Job)
}

// Upload implements Client.
func (c *Cache) Upload(ctx context.Context, id string) (*Upload, error) {
	return cached(ctx, c, "uploads", id, c.inner.Upload)
}

// Sample implements Client.
func (c *Cache) Sample(ctx context.Context, id string) (*Sample, error) {
	return cached(ctx, c, "samples", id, c.inner.Sample)
}

// UploadContent implements Client.
func (c *Cache) UploadContent(ctx context.Context, id string) ([]byte, error) {
	if payload, ok, err := c.lookup(ctx, "upload_content", id); err != nil {
		return nil, err
	} else if ok {
		return payload, nil
	}
	data, err := c.inner.UploadContent(ctx, id)
	if err != nil {
		return nil, err
	}
	c.rec.RecordFetch("upload_content")
	if err := c.store(ctx, "upload_content", id, data); err != nil {
		return nil, err
	}
	return data, nil
}

func cached[T any](ctx context.Context, c *Cache, resource, id string, fetch func(context.Context, string) (*T, error)) (*T, error) {
	if payload, ok, err := c.lookup(ctx, resource, id); err != nil {
		return nil, err
	} else if ok {
		var rec T
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("lims: decode cached %s %s: %w", resource, id, err)
		}
		return &rec, nil
	}
	rec, err := fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	c.rec.RecordFetch(resource)
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("lims: encode %s %s: %w", resource, id, err)
	}
	if err := c.store(ctx, resource, id, payload); err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Cache) lookup(ctx context.Context, resource, id string) ([]byte, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM records WHERE resource = ? AND id = ?`,
		resource, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lims: cache lookup %s %s: %w", resource, id, err)
	}
	c.log.Debug("cache hit", "resource", resource, "id", id)
	c.rec.RecordCacheHit(resource)
	return payload, true, nil
}

func (c *Cache) store(ctx context.Context, resource, id string, payload []byte) error {
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO records (resource, id, payload) VALUES (?, ?, ?)
		 ON CONFLICT(resource, id) DO UPDATE SET payload = excluded.payload`,
		resource, id, payload); err != nil {
		return fmt.Errorf("lims: cache store %s %s: %w", resource, id, err)
	}
	return nil
}
