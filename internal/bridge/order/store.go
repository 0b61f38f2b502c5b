package order

import (
	"context"
	"time"
)

// ListFilter narrows Store.List.
type ListFilter struct {
	TelegramUserID *int64
	Limit          int
	Offset         int
}

// Store durably persists BridgeOrders and their state transitions.
// Two implementations exist: memory (tests/dev) and postgres
// (production), both satisfying this interface.
type Store interface {
	Create(ctx context.Context, o *BridgeOrder) error
	Get(ctx context.Context, handle string) (*BridgeOrder, error)
	List(ctx context.Context, filter ListFilter) ([]*BridgeOrder, int, error)

	// UpdateStatus performs a conditional update: it only applies if the
	// order's current persisted status equals expectedFrom (the
	// WHERE-status-guard discipline the background drivers rely on so
	// two racing passes never double-apply a transition). It returns
	// (updated, applied) where applied=false means the conditional guard
	// did not match (another driver raced ahead).
	UpdateStatus(ctx context.Context, handle string, expectedFrom, to Status, mutate func(*BridgeOrder)) (*BridgeOrder, bool, error)

	// Patch conditionally mutates an order's non-status fields (e.g.
	// backfilling a deposit address, bumping confirmations_current)
	// without advancing its status, guarded by the same WHERE-status
	// discipline as UpdateStatus. applied=false means the order's
	// persisted status no longer matches expectedStatus.
	Patch(ctx context.Context, handle string, expectedStatus Status, mutate func(*BridgeOrder)) (*BridgeOrder, bool, error)

	// ListCreated returns up to limit oldest orders still in created
	// (no deposit address assigned yet), for the Deposit Monitor.
	ListCreated(ctx context.Context, limit int) ([]*BridgeOrder, error)

	// ListAwaitingDeposit returns up to limit oldest orders in
	// awaiting_deposit, for the Deposit Monitor.
	ListAwaitingDeposit(ctx context.Context, limit int) ([]*BridgeOrder, error)

	// ListConfirming returns up to limit oldest orders in deposit_detected
	// or confirming, for the Confirmation Checker.
	ListConfirming(ctx context.Context, limit int) ([]*BridgeOrder, error)

	// ListWithdrawing returns up to limit oldest orders in bridging,
	// signing, or sending, for the Withdrawal Processor.
	ListWithdrawing(ctx context.Context, limit int) ([]*BridgeOrder, error)

	// ListExpiredAwaitingDeposit returns handles of awaiting_deposit orders
	// whose expiry has elapsed, for the Expiry Sweeper.
	ListExpiredAwaitingDeposit(ctx context.Context, now time.Time) ([]string, error)

	// ExpireAwaitingDeposit batch-transitions all awaiting_deposit orders
	// past expiry to expired, returning the count affected.
	ExpireAwaitingDeposit(ctx context.Context, now time.Time) (int64, error)

	// Stats aggregates order counts per status and total completed
	// volume, for GET /v1/admin/stats.
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the admin dashboard's aggregate view of the order book.
type Stats struct {
	CountByStatus  map[Status]int64
	CompletedCount int64
	CompletedFromVolume float64
}
