package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const expirySweeperInterval = 300 * time.Second

// ExpirySweeper batch-expires awaiting_deposit orders past their
// ExpiresAt on a 300s loop. It deliberately only scans
// awaiting_deposit, never created -- an order still waiting on address
// allocation is the Deposit Monitor's concern, not the sweeper's.
type ExpirySweeper struct {
	store order.Store
	svc   *order.Service
	log   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*ExpirySweeper)(nil)

// NewExpirySweeper constructs an ExpirySweeper.
func NewExpirySweeper(store order.Store, svc *order.Service, log logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{store: store, svc: svc, log: log}
}

func (e *ExpirySweeper) Name() string { return "expiry-sweeper" }

func (e *ExpirySweeper) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(expirySweeperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				e.tick(runCtx)
			}
		}
	}()

	e.log.Info("expiry sweeper started")
	return nil
}

func (e *ExpirySweeper) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	cancel := e.cancel
	e.running = false
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (e *ExpirySweeper) tick(ctx context.Context) {
	handles, err := e.store.ListExpiredAwaitingDeposit(ctx, time.Now().UTC())
	if err != nil {
		e.log.WithError(err).Warn("expiry sweeper: list expired failed")
		return
	}
	if len(handles) == 0 {
		return
	}

	affected, err := e.store.ExpireAwaitingDeposit(ctx, time.Now().UTC())
	if err != nil {
		e.log.WithError(err).Warn("expiry sweeper: batch expire failed")
		return
	}
	e.log.WithField("count", affected).Info("expiry sweeper: expired orders")

	for _, handle := range handles {
		if e.svc == nil {
			continue
		}
		o, err := e.svc.Get(ctx, handle)
		if err != nil || o.Status != order.StatusExpired {
			continue
		}
		e.svc.NotifyExpired(ctx, o)
	}
}
