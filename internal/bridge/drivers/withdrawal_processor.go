package drivers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/chainadapter"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const withdrawalProcessorInterval = 15 * time.Second
const withdrawalProcessorBatch = 50

// WithdrawalProcessor drives a single order through bridging -> signing
// -> sending -> completed/failed. Rather than waiting on a network of
// remote signer processes, it holds the local Signer participants
// produced by the key ceremony directly and submits their shares to the
// Coordinator itself -- the ceremony and signing surface stay
// production-shaped while the signer transport is an in-process
// stand-in for what would otherwise be a call to independently hosted
// signers.
type WithdrawalProcessor struct {
	store       order.Store
	chains      *chainadapter.Registry
	coordinator *signing.Coordinator
	signers     []*signing.Signer
	svc         *order.Service
	log         logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*WithdrawalProcessor)(nil)

// NewWithdrawalProcessor constructs a WithdrawalProcessor. signers must
// hold at least as many participants as the Coordinator's threshold.
func NewWithdrawalProcessor(store order.Store, chains *chainadapter.Registry, coordinator *signing.Coordinator, signers []*signing.Signer, svc *order.Service, log logger.Logger) *WithdrawalProcessor {
	return &WithdrawalProcessor{store: store, chains: chains, coordinator: coordinator, signers: signers, svc: svc, log: log}
}

func (w *WithdrawalProcessor) Name() string { return "withdrawal-processor" }

func (w *WithdrawalProcessor) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(withdrawalProcessorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				w.tick(runCtx)
			}
		}
	}()

	w.log.Info("withdrawal processor started")
	return nil
}

func (w *WithdrawalProcessor) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (w *WithdrawalProcessor) tick(ctx context.Context) {
	orders, err := w.store.ListWithdrawing(ctx, withdrawalProcessorBatch)
	if err != nil {
		w.log.WithError(err).Warn("withdrawal processor: list failed")
		return
	}
	for _, o := range orders {
		w.processOne(ctx, o)
	}
}

func (w *WithdrawalProcessor) processOne(ctx context.Context, o *order.BridgeOrder) {
	switch o.Status {
	case order.StatusBridging:
		w.startSigning(ctx, o)
	case order.StatusSigning:
		w.pollSigning(ctx, o)
	case order.StatusSending:
		w.broadcast(ctx, o)
	}
}

func signingRequestID(handle string) string { return "withdraw:" + handle }

func txDataFor(o *order.BridgeOrder) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d", o.Handle, o.DestChain, o.DestAddress, int64(o.ToAmount)))
}

// startSigning opens a signing session for a bridging order and submits
// shares from as many local signers as the coordinator's threshold
// requires, then advances the order to signing.
func (w *WithdrawalProcessor) startSigning(ctx context.Context, o *order.BridgeOrder) {
	requestID := signingRequestID(o.Handle)
	txData := txDataFor(o)

	session, err := w.coordinator.RequestSigning(ctx, requestID, txData)
	if err != nil {
		w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: request signing failed")
		return
	}

	for _, signer := range w.signers {
		if len(session.Shares) >= session.Threshold {
			break
		}
		share, err := signer.Sign(txData)
		if err != nil {
			w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: signer share failed")
			continue
		}
		session, err = w.coordinator.SubmitShare(ctx, requestID, share)
		if err != nil {
			w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: submit share failed")
			continue
		}
	}

	if _, err := w.svc.AdvanceStatus(ctx, o.Handle, order.StatusBridging, order.StatusSigning, func(updated *order.BridgeOrder) {
		if updated.Metadata == nil {
			updated.Metadata = map[string]interface{}{}
		}
		updated.Metadata["signing_request_id"] = requestID
	}); err != nil {
		w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: transition to signing failed")
	}
}

// pollSigning checks whether the order's signing session has completed
// or failed and advances it accordingly.
func (w *WithdrawalProcessor) pollSigning(ctx context.Context, o *order.BridgeOrder) {
	requestID := signingRequestID(o.Handle)
	session, err := w.coordinator.GetSession(ctx, requestID)
	if err != nil {
		return
	}

	switch session.Status {
	case signing.SessionComplete:
		if _, err := w.svc.AdvanceStatus(ctx, o.Handle, order.StatusSigning, order.StatusSending, func(updated *order.BridgeOrder) {
			if updated.Metadata == nil {
				updated.Metadata = map[string]interface{}{}
			}
			updated.Metadata["signature"] = session.Signature
		}); err != nil {
			w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: transition to sending failed")
		}
	case signing.SessionFailed:
		if _, err := w.svc.AdvanceStatus(ctx, o.Handle, order.StatusSigning, order.StatusFailed, func(updated *order.BridgeOrder) {
			msg := session.Error
			updated.ErrorMessage = &msg
		}); err != nil {
			w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: transition to failed failed")
		}
	}
}

// broadcast submits the signed withdrawal to the destination chain.
// chainadapter.Adapter.Broadcast is a stub pending a concrete per-chain
// integration, so an empty returned hash leaves the order in sending
// for the next tick rather than fabricating a result.
func (w *WithdrawalProcessor) broadcast(ctx context.Context, o *order.BridgeOrder) {
	adapter, err := w.chains.Get(o.DestChain)
	if err != nil {
		return
	}

	signature, _ := o.Metadata["signature"].(string)
	txHash, err := adapter.Broadcast(ctx, []byte(signature))
	if err != nil {
		w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: broadcast failed")
		return
	}
	if txHash == "" {
		return
	}

	if _, err := w.svc.AdvanceStatus(ctx, o.Handle, order.StatusSending, order.StatusCompleted, func(updated *order.BridgeOrder) {
		updated.WithdrawalTxHash = &txHash
	}); err != nil {
		w.log.WithError(err).WithField("handle", o.Handle).Warn("withdrawal processor: transition to completed failed")
	}
}
