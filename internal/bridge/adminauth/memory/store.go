// Package memory is an in-memory adminauth.Store for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth"
)

// Store is an in-memory adminauth.Store.
type Store struct {
	mu    sync.RWMutex
	users map[string]adminauth.AdminUser // keyed by username
}

// New creates an in-memory admin store seeded with no users.
func New() *Store {
	return &Store{users: make(map[string]adminauth.AdminUser)}
}

// Seed inserts or replaces an admin user, for bootstrap/test setup.
func (s *Store) Seed(u adminauth.AdminUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

func (s *Store) GetByUsername(_ context.Context, username string) (*adminauth.AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (s *Store) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for username, u := range s.users {
		if u.ID == id {
			u.LastLoginAt = &at
			s.users[username] = u
			return nil
		}
	}
	return nil
}

var _ adminauth.Store = (*Store)(nil)
