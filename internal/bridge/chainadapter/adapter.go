// Package chainadapter defines the uniform per-chain transport the
// bridge engine's drivers use to talk to XMR/BTC/ETH-family/TON/SOL
// nodes over JSON-RPC.
//
// The deposit-detection and confirmation-count RPC bodies are
// intentionally left as thin stubs returning (nil, nil) / a passthrough
// confirmation count: this package does not guess at per-chain indexing
// strategy or node selection; wiring a production indexer is future
// work for a chain integrator, not something this package invents.
package chainadapter

import "context"

// Deposit is an observed incoming transfer to a deposit address.
type Deposit struct {
	TxHash        string
	AmountMicros  int64
	Confirmations int
}

// Adapter is the single concrete type behind every chain integration: one
// Adapter per chain code, each over that chain's RPCTransport.
type Adapter struct {
	name string
	rpc  RPCTransport
}

// RPCTransport is the minimal JSON-RPC call surface an Adapter needs.
type RPCTransport interface {
	Call(ctx context.Context, method string, params []interface{}) (interface{}, error)
}

// New builds an Adapter for a named chain over an RPCTransport.
func New(name string, rpc RPCTransport) *Adapter {
	return &Adapter{name: name, rpc: rpc}
}

// Name returns the chain identifier (e.g. "XMR", "BTC", "ETH").
func (a *Adapter) Name() string { return a.name }

// Balance returns the confirmed balance of an address in the chain's
// smallest unit. Stubbed pending a concrete per-chain indexer.
func (a *Adapter) Balance(ctx context.Context, address string) (int64, error) {
	return 0, nil
}

// NewDepositAddress allocates (or derives) a fresh deposit address for
// an order. Stubbed pending a concrete per-chain wallet/HD-derivation
// integration.
func (a *Adapter) NewDepositAddress(ctx context.Context, orderHandle string) (string, error) {
	return "", nil
}

// DetectDeposit checks whether a transfer has arrived at address since
// it was allocated. Returns (nil, nil) when nothing is observed yet.
func (a *Adapter) DetectDeposit(ctx context.Context, address string) (*Deposit, error) {
	return nil, nil
}

// Confirmations returns the current confirmation count for a deposit
// tx. Stubbed to echo back the previously recorded count.
func (a *Adapter) Confirmations(ctx context.Context, txHash string, previousCount int) (int, error) {
	return previousCount, nil
}

// Broadcast submits a signed withdrawal transaction and returns its
// hash. Stubbed pending a concrete per-chain broadcast integration.
func (a *Adapter) Broadcast(ctx context.Context, signedTx []byte) (string, error) {
	return "", nil
}

// TokenBalance returns the balance of an ERC20/SPL/Jetton-style token
// at address. Stubbed; only EVM/SOL/TON chains exercise this.
func (a *Adapter) TokenBalance(ctx context.Context, address, tokenContract string) (int64, error) {
	return 0, nil
}
