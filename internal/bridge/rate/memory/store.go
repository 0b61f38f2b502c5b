// Package memory is an in-memory rate.Store for tests and local
// development, using a mutex-guarded slice/map.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
)

type key struct {
	from string
	to   string
}

// Store is an in-memory rate.Store.
type Store struct {
	mu   sync.RWMutex
	rows map[key][]rate.Data
}

// New creates an empty in-memory rate store.
func New() *Store {
	return &Store{rows: make(map[key][]rate.Data)}
}

func (s *Store) InsertRate(_ context.Context, d rate.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{from: d.FromCurrency, to: d.ToCurrency}
	s.rows[k] = append(s.rows[k], d)
	return nil
}

func (s *Store) History(_ context.Context, from, to string, since time.Time) ([]rate.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k := key{from: from, to: to}
	rows := s.rows[k]
	out := make([]rate.HistoryPoint, 0, len(rows))
	for _, r := range rows {
		if r.FetchedAt.Before(since) {
			continue
		}
		out = append(out, rate.HistoryPoint{Rate: r.Rate, At: r.FetchedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

var _ rate.Store = (*Store)(nil)
