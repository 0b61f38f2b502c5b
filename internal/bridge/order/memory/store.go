// Package memory is a thread-safe in-memory order.Store using a
// mutex-guarded map with clone-on-read semantics. Intended for tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
)

// Store is an in-memory order.Store implementation.
type Store struct {
	mu     sync.RWMutex
	orders map[string]order.BridgeOrder // keyed by Handle
}

// New creates an empty in-memory order store.
func New() *Store {
	return &Store{orders: make(map[string]order.BridgeOrder)}
}

func clone(o order.BridgeOrder) *order.BridgeOrder {
	cp := o
	if o.DepositAddress != nil {
		v := *o.DepositAddress
		cp.DepositAddress = &v
	}
	if o.DepositTxHash != nil {
		v := *o.DepositTxHash
		cp.DepositTxHash = &v
	}
	if o.WithdrawalTxHash != nil {
		v := *o.WithdrawalTxHash
		cp.WithdrawalTxHash = &v
	}
	if o.TelegramUserID != nil {
		v := *o.TelegramUserID
		cp.TelegramUserID = &v
	}
	if o.IPAddress != nil {
		v := *o.IPAddress
		cp.IPAddress = &v
	}
	if o.ErrorMessage != nil {
		v := *o.ErrorMessage
		cp.ErrorMessage = &v
	}
	if o.Metadata != nil {
		m := make(map[string]interface{}, len(o.Metadata))
		for k, v := range o.Metadata {
			m[k] = v
		}
		cp.Metadata = m
	}
	return &cp
}

func (s *Store) Create(_ context.Context, o *order.BridgeOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.Handle]; exists {
		return apperr.Conflict("order %s already exists", o.Handle)
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.Handle] = *clone(*o)
	return nil
}

func (s *Store) Get(_ context.Context, handle string) (*order.BridgeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[handle]
	if !ok {
		return nil, apperr.NotFound("order %s not found", handle)
	}
	return clone(o), nil
}

func (s *Store) List(_ context.Context, filter order.ListFilter) ([]*order.BridgeOrder, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]order.BridgeOrder, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.TelegramUserID != nil {
			if o.TelegramUserID == nil || *o.TelegramUserID != *filter.TelegramUserID {
				continue
			}
		}
		matched = append(matched, o)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if filter.Limit <= 0 || end > total {
		end = total
	}

	out := make([]*order.BridgeOrder, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, clone(o))
	}
	return out, total, nil
}

func (s *Store) UpdateStatus(_ context.Context, handle string, expectedFrom, to order.Status, mutate func(*order.BridgeOrder)) (*order.BridgeOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[handle]
	if !ok {
		return nil, false, apperr.NotFound("order %s not found", handle)
	}
	if o.Status != expectedFrom {
		return nil, false, nil
	}
	if !order.CanTransition(o.Status, to) {
		return nil, false, order.NewTransitionError(o.Status, to)
	}

	updated := clone(o)
	updated.Status = to
	updated.Step = to.Step()
	if mutate != nil {
		mutate(updated)
	}
	updated.UpdatedAt = time.Now().UTC()
	s.orders[handle] = *clone(*updated)
	return updated, true, nil
}

func (s *Store) Patch(_ context.Context, handle string, expectedStatus order.Status, mutate func(*order.BridgeOrder)) (*order.BridgeOrder, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[handle]
	if !ok {
		return nil, false, apperr.NotFound("order %s not found", handle)
	}
	if o.Status != expectedStatus {
		return nil, false, nil
	}

	updated := clone(o)
	if mutate != nil {
		mutate(updated)
	}
	updated.UpdatedAt = time.Now().UTC()
	s.orders[handle] = *clone(*updated)
	return updated, true, nil
}

func (s *Store) ListCreated(_ context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(order.StatusCreated, limit)
}

func (s *Store) ListAwaitingDeposit(_ context.Context, limit int) ([]*order.BridgeOrder, error) {
	return s.listByStatus(order.StatusAwaitingDeposit, limit)
}

func (s *Store) ListConfirming(_ context.Context, limit int) ([]*order.BridgeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]order.BridgeOrder, 0)
	for _, o := range s.orders {
		if o.Status == order.StatusDepositDetected || o.Status == order.StatusConfirming {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*order.BridgeOrder, 0, len(matched))
	for _, o := range matched {
		out = append(out, clone(o))
	}
	return out, nil
}

func (s *Store) ListWithdrawing(_ context.Context, limit int) ([]*order.BridgeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]order.BridgeOrder, 0)
	for _, o := range s.orders {
		switch o.Status {
		case order.StatusBridging, order.StatusSigning, order.StatusSending:
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*order.BridgeOrder, 0, len(matched))
	for _, o := range matched {
		out = append(out, clone(o))
	}
	return out, nil
}

func (s *Store) listByStatus(status order.Status, limit int) ([]*order.BridgeOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]order.BridgeOrder, 0)
	for _, o := range s.orders {
		if o.Status == status {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].UpdatedAt.Before(matched[j].UpdatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*order.BridgeOrder, 0, len(matched))
	for _, o := range matched {
		out = append(out, clone(o))
	}
	return out, nil
}

func (s *Store) ListExpiredAwaitingDeposit(_ context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0)
	for handle, o := range s.orders {
		if o.Status == order.StatusAwaitingDeposit && o.ExpiresAt.Before(now) {
			out = append(out, handle)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ExpireAwaitingDeposit(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for handle, o := range s.orders {
		if o.Status == order.StatusAwaitingDeposit && o.ExpiresAt.Before(now) {
			o.Status = order.StatusExpired
			o.Step = order.StatusExpired.Step()
			o.UpdatedAt = now
			s.orders[handle] = o
			count++
		}
	}
	return count, nil
}

func (s *Store) Stats(_ context.Context) (*order.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &order.Stats{CountByStatus: make(map[order.Status]int64)}
	for _, o := range s.orders {
		st.CountByStatus[o.Status]++
		if o.Status == order.StatusCompleted {
			st.CompletedCount++
			st.CompletedFromVolume += o.FromAmount.Float()
		}
	}
	return st, nil
}

var _ order.Store = (*Store)(nil)
