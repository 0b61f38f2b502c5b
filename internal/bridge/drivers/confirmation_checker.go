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

const confirmationCheckerInterval = 60 * time.Second
const confirmationCheckerBatch = 200

// ConfirmationChecker moves deposit_detected orders to confirming on first
// sight, then moves confirming orders on to bridging once
// ConfirmationsCurrent reaches ConfirmationsRequired (patching the running
// count otherwise), on a 60s/200-batch loop.
type ConfirmationChecker struct {
	store  order.Store
	chains *chainadapter.Registry
	svc    *order.Service
	log    logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*ConfirmationChecker)(nil)

// NewConfirmationChecker constructs a ConfirmationChecker.
func NewConfirmationChecker(store order.Store, chains *chainadapter.Registry, svc *order.Service, log logger.Logger) *ConfirmationChecker {
	return &ConfirmationChecker{store: store, chains: chains, svc: svc, log: log}
}

func (c *ConfirmationChecker) Name() string { return "confirmation-checker" }

func (c *ConfirmationChecker) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(confirmationCheckerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.tick(runCtx)
			}
		}
	}()

	c.log.Info("confirmation checker started")
	return nil
}

func (c *ConfirmationChecker) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (c *ConfirmationChecker) tick(ctx context.Context) {
	orders, err := c.store.ListConfirming(ctx, confirmationCheckerBatch)
	if err != nil {
		c.log.WithError(err).Warn("confirmation checker: list failed")
		return
	}
	for _, o := range orders {
		c.checkOne(ctx, o)
	}
}

func (c *ConfirmationChecker) checkOne(ctx context.Context, o *order.BridgeOrder) {
	if o.DepositTxHash == nil {
		return
	}
	adapter, err := c.chains.Get(o.SourceChain)
	if err != nil {
		return
	}
	count, err := adapter.Confirmations(ctx, *o.DepositTxHash, o.ConfirmationsCurrent)
	if err != nil {
		c.log.WithError(err).WithField("handle", o.Handle).Warn("confirmation checker: fetch confirmations failed")
		return
	}

	switch o.Status {
	case order.StatusDepositDetected:
		// deposit_detected can only step to confirming (never directly
		// to bridging, per the state machine), even if confirmations
		// already satisfy the requirement on first observation.
		if _, err := c.svc.AdvanceStatus(ctx, o.Handle, order.StatusDepositDetected, order.StatusConfirming, func(updated *order.BridgeOrder) {
			updated.ConfirmationsCurrent = count
		}); err != nil {
			c.log.WithError(err).WithField("handle", o.Handle).Warn("confirmation checker: transition to confirming failed")
		}
	case order.StatusConfirming:
		if count >= o.ConfirmationsRequired {
			if _, err := c.svc.AdvanceStatus(ctx, o.Handle, order.StatusConfirming, order.StatusBridging, func(updated *order.BridgeOrder) {
				updated.ConfirmationsCurrent = count
			}); err != nil {
				c.log.WithError(err).WithField("handle", o.Handle).Warn("confirmation checker: transition to bridging failed")
			}
			return
		}
		if count != o.ConfirmationsCurrent {
			if _, err := c.svc.Patch(ctx, o.Handle, order.StatusConfirming, func(updated *order.BridgeOrder) {
				updated.ConfirmationsCurrent = count
			}); err != nil {
				c.log.WithError(err).WithField("handle", o.Handle).Warn("confirmation checker: patch confirmations failed")
			}
		}
	}
}
