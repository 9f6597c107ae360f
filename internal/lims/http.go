package lims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// HTTPConfig configures the REST client for the inventory API.
type HTTPConfig struct {
	// BaseURL is the root of the inventory API, e.g. "http://lims.example.org".
	BaseURL string
	// Token is the API token sent on every request.
	Token string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout is the per-request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// HTTPClient is a Client over the inventory REST API. Fetched records are
// memoized for the lifetime of the client, so repeated lookups during a
// single graph build hit the network once.
type HTTPClient struct {
	base   *url.URL
	token  string
	client *http.Client
	log    *slog.Logger

	mu          sync.Mutex
	plans       map[string]*Plan
	items       map[string]*Item
	collections map[string]*Collection
	jobs        map[string]*Job
	uploads     map[string]*Upload
	samples     map[string]*Sample
}

// NewHTTPClient constructs a memoizing REST client.
func NewHTTPClient(cfg HTTPConfig, log *slog.Logger) (*HTTPClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("lims: parse base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPClient{
		base:        base,
		token:       cfg.Token,
		client:      &http.Client{Timeout: timeout},
		log:         log,
		plans:       make(map[string]*Plan),
		items:       make(map[string]*Item),
		collections: make(map[string]*Collection),
		jobs:        make(map[string]*Job),
		uploads:     make(map[string]*Upload),
		samples:     make(map[string]*Sample),
	}, nil
}

// Plan implements Client.
func (c *HTTPClient) Plan(ctx context.Context, id string) (*Plan, error) {
	return memoizedCtx(ctx, c, c.plans, id, "plans")
}

// Item implements Client.
func (c *HTTPClient) Item(ctx context.Context, id string) (*Item, error) {
	return memoizedCtx(ctx, c, c.items, id, "items")
}

// Collection implements Client.
func (c *HTTPClient) Collection(ctx context.Context, id string) (*Collection, error) {
	return memoizedCtx(ctx, c, c.collections, id, "collections")
}

// Job implements Client.
func (c *HTTPClient) Job(ctx context.Context, id string) (*Job, error) {
	return memoizedCtx(ctx, c, c.jobs, id, "jobs")
}

// Upload implements Client.
func (c *HTTPClient) Upload(ctx context.Context, id string) (*Upload, error) {
	return memoizedCtx(ctx, c, c.uploads, id, "uploads")
}

// Sample implements Client.
func (c *HTTPClient) Sample(ctx context.Context, id string) (*Sample, error) {
	return memoizedCtx(ctx, c, c.samples, id, "samples")
}

// UploadContent implements Client. Content is never memoized; files can be
// large and each is fetched at most once per upload run.
func (c *HTTPClient) UploadContent(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.get(ctx, fmt.Sprintf("uploads/%s/content", url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lims: read upload %s content: %w", id, err)
	}
	return data, nil
}

func (c *HTTPClient) get(ctx context.Context, path string) (*http.Response, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("lims: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lims: GET %s: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("lims: GET %s: unexpected status %s", path, resp.Status)
	}
	return resp, nil
}

func fetch[T any](ctx context.Context, c *HTTPClient, resource, id string) (*T, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/%s.json", resource, url.PathEscape(id)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	var rec T
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("lims: decode %s %s: %w", resource, id, err)
	}
	c.log.Debug("fetched record", "resource", resource, "id", id)
	return &rec, nil
}

func memoizedCtx[T any](ctx context.Context, c *HTTPClient, cache map[string]*T, id, resource string) (*T, error) {
	c.mu.Lock()
	if rec, ok := cache[id]; ok {
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()
	rec, err := fetch[T](ctx, c, resource, id)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	cache[id] = rec
	c.mu.Unlock()
	return rec, nil
}
