// Package memory is an in-memory audit.Store using a mutex-guarded,
// append-only slice that is never trimmed.
package memory

import (
	"context"
	"sync"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit"
)

// Store is an in-memory, append-only audit.Store.
type Store struct {
	mu      sync.Mutex
	records []audit.Record
	nextID  int64
}

// New creates an empty in-memory audit store.
func New() *Store {
	return &Store{nextID: 1}
}

func (s *Store) LatestHash(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return "", nil
	}
	return s.records[len(s.records)-1].ContentHash, nil
}

func (s *Store) Append(_ context.Context, r *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.nextID
	s.nextID++
	s.records = append(s.records, *r)
	return nil
}

func (s *Store) List(_ context.Context, entityType, entityID string, limit int) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Record, 0, limit)
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if entityType != "" && r.EntityType != entityType {
			continue
		}
		if entityID != "" && r.EntityID != entityID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListSince(_ context.Context, afterID int64, limit int) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]audit.Record, 0, limit)
	for _, r := range s.records {
		if r.ID <= afterID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ audit.Store = (*Store)(nil)
