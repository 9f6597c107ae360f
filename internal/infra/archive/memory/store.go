// Package memory provides an in-memory provenance archive used by tests and
// dry runs where nothing should touch disk.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"tracecore/internal/archive/core"
)

var _ core.Store = (*Store)(nil)

// Store keeps archived documents in process memory. Documents are stored as
// encoded JSON so callers cannot mutate archived state through shared maps.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewStore constructs an empty in-memory archive.
func NewStore() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// SaveDocument archives doc for the plan, replacing any earlier document.
func (s *Store) SaveDocument(_ context.Context, planID string, doc map[string]any) error {
	if planID == "" {
		return fmt.Errorf("archive memory: empty plan id")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[planID] = payload
	return nil
}

// Document returns the archived document for the plan.
func (s *Store) Document(_ context.Context, planID string) (map[string]any, error) {
	s.mu.RLock()
	payload, ok := s.docs[planID]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", planID, err)
	}
	return doc, nil
}

// Plans lists archived plan IDs in ascending order.
func (s *Store) Plans(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plans := make([]string, 0, len(s.docs))
	for id := range s.docs {
		plans = append(plans, id)
	}
	sort.Strings(plans)
	return plans, nil
}

// Close is a no-op for the in-memory archive.
func (s *Store) Close() error { return nil }

// Driver reports the backend kind.
func (s *Store) Driver() core.Driver { return core.DriverMemory }
