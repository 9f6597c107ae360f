// Package upload pushes a completed trace to object storage: the rendered
// provenance document at the plan root, and one directory per generating
// activity holding that activity's files plus its own provenance document.
//
// Keys follow <base>/<YYYYMM>/<plan id>/(op_<id>|job_<id>)/<file name>, so a
// month's uploads for a plan land together and files from different
// activities never collide.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"tracecore/internal/blob"
	"tracecore/internal/export"
	"tracecore/pkg/domain"
)

// ProvenanceDumpName is the document file written into each directory.
const ProvenanceDumpName = "provenance_dump.json"

// ContentSource fetches the raw bytes of an uploaded file by upload ID.
// The inventory client satisfies this.
type ContentSource interface {
	UploadContent(ctx context.Context, id string) ([]byte, error)
}

// Config carries the collaborators for a Manager.
type Config struct {
	Store    blob.Store
	Contents ContentSource
	BasePath string
	Logger   *slog.Logger
	// Now is used to stamp the month segment of the key; nil means time.Now.
	Now func() time.Time
}

// Manager uploads one trace. Build it with NewManager after the trace has
// been repaired and checked.
type Manager struct {
	trace      *domain.Trace
	store      blob.Store
	contents   ContentSource
	log        *slog.Logger
	base       string
	generators map[string]domain.Activity
}

// NewManager constructs a Manager rooted under cfg.BasePath and indexes the
// trace's files by generating activity.
func NewManager(trace *domain.Trace, cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("upload: nil blob store")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		trace:      trace,
		store:      cfg.Store,
		contents:   cfg.Contents,
		log:        log,
		base:       path.Join(cfg.BasePath, now().UTC().Format("200601"), trace.ExperimentID),
		generators: make(map[string]domain.Activity),
	}
	for _, file := range trace.Files() {
		generator := file.Generator()
		if generator == nil {
			continue
		}
		if _, ok := m.generators[generator.ActivityID()]; !ok {
			log.Info("adding upload directory", "generator", generator.ActivityID())
			m.generators[generator.ActivityID()] = generator
		}
	}
	return m, nil
}

// BasePath returns the key prefix all objects are written under.
func (m *Manager) BasePath() string { return m.base }

// Directories returns the generator directory names in ascending order.
func (m *Manager) Directories() []string {
	names := make([]string, 0, len(m.generators))
	for name := range m.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upload writes the provenance documents and, unless provOnly is set, the
// file payloads. Keys that already exist are skipped so a rerun never
// clobbers an earlier upload.
func (m *Manager) Upload(ctx context.Context, provOnly bool) error {
	doc := export.Document(m.trace)
	if err := m.putJSON(ctx, path.Join(m.base, ProvenanceDumpName), doc); err != nil {
		return err
	}
	for _, name := range m.Directories() {
		generator := m.generators[name]
		dir := path.Join(m.base, name)
		if !provOnly {
			if err := m.uploadDirectory(ctx, dir, generator); err != nil {
				return err
			}
		}
		if err := m.putJSON(ctx, path.Join(dir, ProvenanceDumpName), export.GeneratorDocument(m.trace, generator)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) uploadDirectory(ctx context.Context, dir string, generator domain.Activity) error {
	for _, entity := range m.trace.FilesGeneratedBy(generator) {
		file, ok := entity.(*domain.File)
		if !ok {
			// Externally stored files have no upload to fetch.
			continue
		}
		if m.contents == nil {
			return fmt.Errorf("upload: no content source for file %s", file.EntityID())
		}
		data, err := m.contents.UploadContent(ctx, file.UploadID)
		if err != nil {
			return fmt.Errorf("fetch upload %s: %w", file.UploadID, err)
		}
		key := path.Join(dir, file.FileName())
		if err := m.put(ctx, key, data, contentTypeFor(file.FileType())); err != nil {
			return err
		}
	}
	return nil
}

func contentTypeFor(t domain.FileType) string {
	switch t {
	case domain.FileTypeCSV:
		return "text/csv"
	case domain.FileTypeXML:
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

func (m *Manager) putJSON(ctx context.Context, key string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return m.put(ctx, key, data, "application/json")
}

func (m *Manager) put(ctx context.Context, key string, data []byte, contentType string) error {
	if _, err := m.store.Head(ctx, key); err == nil {
		m.log.Warn("object already uploaded, skipping", "key", key)
		return nil
	}
	m.log.Info("uploading object", "key", key, "bytes", len(data))
	if _, err := m.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
