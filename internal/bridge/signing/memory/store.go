// Package memory is an in-memory signing.Store for tests. Note this
// does NOT provide the cross-restart replay persistence the postgres
// store does -- it exists for unit tests and local development only.
package memory

import (
	"context"
	"sync"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
)

// Store is an in-memory signing.Store.
type Store struct {
	mu       sync.Mutex
	used     map[string]bool
	sessions map[string]*signing.SigningSession
}

// New creates an empty in-memory signing store.
func New() *Store {
	return &Store{used: make(map[string]bool), sessions: make(map[string]*signing.SigningSession)}
}

func (s *Store) IsRequestUsed(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used[requestID], nil
}

func (s *Store) MarkRequestUsed(_ context.Context, requestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used[requestID] = true
	return nil
}

func (s *Store) SaveSession(_ context.Context, session *signing.SigningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	cp.Shares = make(map[int]signing.Share, len(session.Shares))
	for k, v := range session.Shares {
		cp.Shares[k] = v
	}
	s.sessions[session.RequestID] = &cp
	return nil
}

func (s *Store) LoadSession(_ context.Context, requestID string) (*signing.SigningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[requestID]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

var _ signing.Store = (*Store)(nil)
