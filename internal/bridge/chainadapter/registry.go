package chainadapter

import (
	"context"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// Registry looks up the configured Adapter for a chain code.
type Registry struct {
	adapters map[string]*Adapter
}

// NewRegistry builds a Registry from a set of adapters, keyed by their
// own Name().
func NewRegistry(adapters ...*Adapter) *Registry {
	r := &Registry{adapters: make(map[string]*Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the Adapter registered for chain, or a BadRequest error
// naming the unsupported chain.
func (r *Registry) Get(chain string) (*Adapter, error) {
	a, ok := r.adapters[chain]
	if !ok {
		return nil, apperr.BadRequest("unsupported chain %q", chain)
	}
	return a, nil
}

// Supports reports whether chain has a registered adapter.
func (r *Registry) Supports(chain string) bool {
	_, ok := r.adapters[chain]
	return ok
}

// NewDepositAddress resolves chain's adapter and allocates a deposit
// address for orderHandle, satisfying order.AddressAllocator.
func (r *Registry) NewDepositAddress(ctx context.Context, chain, orderHandle string) (string, error) {
	a, err := r.Get(chain)
	if err != nil {
		return "", err
	}
	return a.NewDepositAddress(ctx, orderHandle)
}
