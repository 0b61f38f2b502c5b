// Package drivers implements the background loops that move orders
// through their lifecycle: Deposit Monitor, Confirmation Checker,
// Expiry Sweeper, the per-order Withdrawal Processor, and the Audit
// Verifier. The first four are restart-safe: they rely on the order
// Store's conditional WHERE-status updates rather than in-process
// locks, so a second instance picking up mid-flight orders after a
// crash cannot double-apply a transition. Each of those four follows
// the same ticker+goroutine+WaitGroup system.Service shape; the Audit
// Verifier instead uses a cron schedule since its cadence is calendar-
// based rather than a fixed interval.
package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/chainadapter"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const depositMonitorInterval = 30 * time.Second
const depositMonitorBatch = 100

// DepositMonitor scans awaiting_deposit (and address-less created)
// orders for incoming transfers, on a 30s/100-batch loop.
type DepositMonitor struct {
	store    order.Store
	chains   *chainadapter.Registry
	svc      *order.Service
	log      logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*DepositMonitor)(nil)

// NewDepositMonitor constructs a DepositMonitor.
func NewDepositMonitor(store order.Store, chains *chainadapter.Registry, svc *order.Service, log logger.Logger) *DepositMonitor {
	return &DepositMonitor{store: store, chains: chains, svc: svc, log: log}
}

func (d *DepositMonitor) Name() string { return "deposit-monitor" }

func (d *DepositMonitor) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(depositMonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				d.tick(runCtx)
			}
		}
	}()

	d.log.Info("deposit monitor started")
	return nil
}

func (d *DepositMonitor) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (d *DepositMonitor) tick(ctx context.Context) {
	created, err := d.store.ListCreated(ctx, depositMonitorBatch)
	if err != nil {
		d.log.WithError(err).Warn("deposit monitor: list created failed")
	}
	for _, o := range created {
		d.allocateAddress(ctx, o)
	}

	orders, err := d.store.ListAwaitingDeposit(ctx, depositMonitorBatch)
	if err != nil {
		d.log.WithError(err).Warn("deposit monitor: list awaiting_deposit failed")
		return
	}

	for _, o := range orders {
		d.checkOne(ctx, o)
	}
}

// allocateAddress backfills a deposit address on an order still in
// created (e.g. allocation failed or no AddressAllocator was wired at
// creation time) and advances it to awaiting_deposit.
func (d *DepositMonitor) allocateAddress(ctx context.Context, o *order.BridgeOrder) {
	if o.DepositAddress != nil {
		return
	}
	addr, err := d.chains.NewDepositAddress(ctx, o.SourceChain, o.Handle)
	if err != nil || addr == "" {
		return
	}
	if _, err := d.svc.AdvanceStatus(ctx, o.Handle, order.StatusCreated, order.StatusAwaitingDeposit, func(updated *order.BridgeOrder) {
		updated.DepositAddress = &addr
	}); err != nil {
		d.log.WithError(err).WithField("handle", o.Handle).Warn("deposit monitor: allocate deposit address failed")
	}
}

func (d *DepositMonitor) checkOne(ctx context.Context, o *order.BridgeOrder) {
	if o.DepositAddress == nil {
		addr, err := d.chains.NewDepositAddress(ctx, o.SourceChain, o.Handle)
		if err != nil || addr == "" {
			return
		}
		if _, err := d.svc.Patch(ctx, o.Handle, order.StatusAwaitingDeposit, func(updated *order.BridgeOrder) {
			updated.DepositAddress = &addr
		}); err != nil {
			d.log.WithError(err).WithField("handle", o.Handle).Warn("deposit monitor: backfill deposit address failed")
		}
		return
	}

	adapter, err := d.chains.Get(o.SourceChain)
	if err != nil {
		return
	}
	deposit, err := adapter.DetectDeposit(ctx, *o.DepositAddress)
	if err != nil {
		d.log.WithError(err).WithField("handle", o.Handle).Warn("deposit monitor: detect deposit failed")
		return
	}
	if deposit == nil {
		return
	}

	if _, err := d.svc.AdvanceStatus(ctx, o.Handle, order.StatusAwaitingDeposit, order.StatusDepositDetected, func(updated *order.BridgeOrder) {
		hash := deposit.TxHash
		updated.DepositTxHash = &hash
		updated.ConfirmationsCurrent = deposit.Confirmations
	}); err != nil {
		d.log.WithError(err).WithField("handle", o.Handle).Warn("deposit monitor: transition to deposit_detected failed")
	}
}
