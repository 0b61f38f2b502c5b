package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/audit"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/chainadapter"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/eventbus"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
	"github.com/r3e-bridge/bridge-engine/internal/money"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

// AuditChain is the subset of audit.Chain the order service needs,
// declared locally so a test double need not depend on audit.Store.
type AuditChain interface {
	Append(ctx context.Context, action, entityType, entityID string, details map[string]interface{}, actor, ipAddress string) (*audit.Record, error)
}

// EventPublisher is the subset of eventbus.Bus the order service needs.
type EventPublisher interface {
	PublishOrder(ctx context.Context, evt eventbus.OrderEvent) error
}

// RateProvider is the subset of rate.Engine the order service needs.
type RateProvider interface {
	GetRate(ctx context.Context, from, to string) (*rate.Data, error)
}

// AddressAllocator assigns a fresh deposit address on the source chain,
// the subset of chainadapter.Registry the order service needs.
type AddressAllocator interface {
	NewDepositAddress(ctx context.Context, chain, orderHandle string) (string, error)
}

var (
	_ AuditChain       = (*audit.Chain)(nil)
	_ EventPublisher   = (*eventbus.Bus)(nil)
	_ RateProvider     = (*rate.Engine)(nil)
	_ AddressAllocator = (*chainadapter.Registry)(nil)
)

// CreateRequest is the validated, user-supplied input to Service.Create.
type CreateRequest struct {
	SourceChain    string
	DestChain      string
	FromAmount     float64
	DestAddress    string
	Slippage       float64
	FeePercent     float64
	ExpiryMinutes  *int
	TelegramUserID *int64
	IPAddress      *string
}

// Service implements the order lifecycle's create/read/cancel
// operations: fetch rate -> compute conversion -> persist -> audit ->
// publish, in that order on every mutation.
type Service struct {
	store                Store
	rates                RateProvider
	audit                AuditChain
	pub                  EventPublisher
	addresses            AddressAllocator
	log                  logger.Logger
	defaultFeePercent    float64
	defaultExpiryMinutes int
}

// NewService wires the order Store to its collaborators. addresses may
// be nil, in which case new orders are left in StatusCreated for the
// Deposit Monitor to backfill a deposit address on its next pass.
// defaultFeePercent and defaultExpiryMinutes back Config.BridgeFeePercent
// and Config.OrderExpiryMinutes: Create falls back to them whenever the
// caller leaves FeePercent at zero or ExpiryMinutes nil.
func NewService(store Store, rates RateProvider, audit AuditChain, pub EventPublisher, addresses AddressAllocator, log logger.Logger, defaultFeePercent float64, defaultExpiryMinutes int) *Service {
	return &Service{
		store:                store,
		rates:                rates,
		audit:                audit,
		pub:                  pub,
		addresses:            addresses,
		log:                  log,
		defaultFeePercent:    defaultFeePercent,
		defaultExpiryMinutes: defaultExpiryMinutes,
	}
}

// generateHandle returns "br_" + 12 hex characters.
func generateHandle() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate order handle: %w", err)
	}
	return "br_" + hex.EncodeToString(buf), nil
}

// Create validates req, resolves the current rate, computes the
// conversion, and persists a new order in StatusCreated.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*BridgeOrder, error) {
	if !IsSupportedChain(req.SourceChain) {
		return nil, apperr.BadRequest("unsupported source chain %q", req.SourceChain)
	}
	if !IsSupportedChain(req.DestChain) {
		return nil, apperr.BadRequest("unsupported dest chain %q", req.DestChain)
	}
	if req.SourceChain == req.DestChain {
		return nil, apperr.BadRequest("source and destination chains must differ")
	}
	if err := ValidateAddress(req.DestChain, req.DestAddress); err != nil {
		return nil, err
	}
	if err := ValidateSlippage(req.Slippage); err != nil {
		return nil, err
	}
	if req.FromAmount <= 0 {
		return nil, apperr.BadRequest("from_amount must be positive")
	}

	feePercent := req.FeePercent
	if feePercent <= 0 {
		feePercent = s.defaultFeePercent
	}

	rateData, err := s.rates.GetRate(ctx, req.SourceChain, req.DestChain)
	if err != nil {
		return nil, err
	}
	conv := rate.CalculateConversion(*rateData, req.FromAmount, feePercent, req.Slippage)

	handle, err := generateHandle()
	if err != nil {
		return nil, err
	}

	// ExpiryMinutes is a pointer so an explicit 0 (immediate expiry, used
	// by operators to test the Expiry Sweep) is distinguishable from an
	// omitted value, which falls back to the configured default.
	expiryMinutes := s.defaultExpiryMinutes
	if req.ExpiryMinutes != nil {
		expiryMinutes = *req.ExpiryMinutes
	}
	now := time.Now().UTC()

	o := &BridgeOrder{
		Handle:                handle,
		Direction:             fmt.Sprintf("%s_to_%s", req.SourceChain, req.DestChain),
		SourceChain:           req.SourceChain,
		DestChain:             req.DestChain,
		FromAmount:            money.FromFloat(req.FromAmount),
		FromCurrency:          req.SourceChain,
		ToAmount:              money.FromFloat(conv.ToAmount),
		ToCurrency:            req.DestChain,
		DestAddress:           req.DestAddress,
		RateAtCreation:        conv.Rate,
		Fee:                   money.FromFloat(conv.Fee),
		FeePercent:            conv.FeePercent,
		MinReceived:           money.FromFloat(conv.MinReceived),
		Slippage:              req.Slippage,
		Status:                StatusCreated,
		Step:                  StatusCreated.Step(),
		ConfirmationsRequired: ConfirmationsForChain(req.SourceChain),
		TelegramUserID:        req.TelegramUserID,
		IPAddress:             req.IPAddress,
		ExpiresAt:             now.Add(time.Duration(expiryMinutes) * time.Minute),
	}

	if s.addresses != nil {
		addr, err := s.addresses.NewDepositAddress(ctx, req.SourceChain, handle)
		if err == nil && addr != "" {
			o.DepositAddress = &addr
			o.Status = StatusAwaitingDeposit
			o.Step = StatusAwaitingDeposit.Step()
		} else if err != nil && s.log != nil {
			s.log.WithError(err).WithField("handle", handle).Warn("deposit address allocation failed, leaving order in created")
		}
	}

	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.logAudit(ctx, "order_created", o.Handle, map[string]interface{}{
		"source_chain": o.SourceChain,
		"dest_chain":   o.DestChain,
		"from_amount":  o.FromAmount.Float(),
	}, "")
	s.publish(ctx, o)

	return o, nil
}

// Get returns an order by handle.
func (s *Service) Get(ctx context.Context, handle string) (*BridgeOrder, error) {
	return s.store.Get(ctx, handle)
}

// List returns a page of orders, optionally filtered by telegram user.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*BridgeOrder, int, error) {
	return s.store.List(ctx, filter)
}

// AdvanceStatus performs a checked, conditional transition and records
// the audit trail + publishes the change.
func (s *Service) AdvanceStatus(ctx context.Context, handle string, from, to Status, mutate func(*BridgeOrder)) (*BridgeOrder, error) {
	updated, applied, err := s.store.UpdateStatus(ctx, handle, from, to, mutate)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.Conflict("order %s is no longer in status %s", handle, from)
	}

	s.logAudit(ctx, "order_status_changed", handle, map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	}, "")
	s.publish(ctx, updated)

	return updated, nil
}

// Patch mutates non-status fields of an order currently in
// expectedStatus (e.g. backfilling a deposit address or bumping
// confirmations_current) without advancing its status, then publishes
// the change. Used by the background drivers for progress updates that
// are not themselves a lifecycle transition.
func (s *Service) Patch(ctx context.Context, handle string, expectedStatus Status, mutate func(*BridgeOrder)) (*BridgeOrder, error) {
	updated, applied, err := s.store.Patch(ctx, handle, expectedStatus, mutate)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.Conflict("order %s is no longer in status %s", handle, expectedStatus)
	}
	s.publish(ctx, updated)
	return updated, nil
}

// Cancel moves an order from AwaitingDeposit to Expired, the only
// cancellation path a user-initiated request is allowed to take.
func (s *Service) Cancel(ctx context.Context, handle string) (*BridgeOrder, error) {
	return s.AdvanceStatus(ctx, handle, StatusAwaitingDeposit, StatusExpired, func(o *BridgeOrder) {
		msg := "cancelled by user"
		o.ErrorMessage = &msg
	})
}

// NotifyExpired records the audit trail and publishes a status-change
// event for an order the Expiry Sweeper has already batch-transitioned
// to StatusExpired directly in the store (bypassing AdvanceStatus, since
// the sweeper moves many orders in one SQL statement).
func (s *Service) NotifyExpired(ctx context.Context, o *BridgeOrder) {
	s.logAudit(ctx, "order_status_changed", o.Handle, map[string]interface{}{
		"from": string(StatusAwaitingDeposit),
		"to":   string(StatusExpired),
	}, "")
	s.publish(ctx, o)
}

// Refund moves a Failed order to Refunding, the admin-initiated path
// the refund endpoint exposes.
func (s *Service) Refund(ctx context.Context, handle, actor string) (*BridgeOrder, error) {
	updated, applied, err := s.store.UpdateStatus(ctx, handle, StatusFailed, StatusRefunding, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.Conflict("order %s is not in status %s", handle, StatusFailed)
	}
	s.logAudit(ctx, "order_status_changed", handle, map[string]interface{}{
		"from": string(StatusFailed),
		"to":   string(StatusRefunding),
	}, actor)
	s.publish(ctx, updated)
	return updated, nil
}

// Stats returns the admin dashboard's aggregate order-book view.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) logAudit(ctx context.Context, action, handle string, details map[string]interface{}, actor string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Append(ctx, action, "order", handle, details, actor, ""); err != nil && s.log != nil {
		s.log.WithError(err).WithField("handle", handle).Warn("audit log append failed")
	}
}

func (s *Service) publish(ctx context.Context, o *BridgeOrder) {
	if s.pub == nil {
		return
	}
	evt := eventbus.OrderEvent{Handle: o.Handle, Status: string(o.Status), Step: o.Step}
	if err := s.pub.PublishOrder(ctx, evt); err != nil && s.log != nil {
		s.log.WithError(err).WithField("handle", o.Handle).Warn("order event publish failed")
	}
}
