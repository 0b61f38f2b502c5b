// Package order implements the BridgeOrder state machine and durable
// store: create/quote/cancel/refund operations, the lifecycle status
// enum and its legal-transition table, and per-chain address
// validation.
package order

import (
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/money"
)

// Status enumerates the BridgeOrder lifecycle states and their integer
// step.
type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingDeposit Status = "awaiting_deposit"
	StatusDepositDetected Status = "deposit_detected"
	StatusConfirming      Status = "confirming"
	StatusBridging        Status = "bridging"
	StatusSigning         Status = "signing"
	StatusSending         Status = "sending"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	StatusRefunding       Status = "refunding"
	StatusRefunded        Status = "refunded"
	StatusExpired         Status = "expired"
)

// Step returns the integer step associated with a status.
func (s Status) Step() int16 {
	switch s {
	case StatusCreated:
		return 0
	case StatusAwaitingDeposit:
		return 1
	case StatusDepositDetected:
		return 2
	case StatusConfirming:
		return 3
	case StatusBridging:
		return 4
	case StatusSigning:
		return 5
	case StatusSending:
		return 6
	case StatusCompleted:
		return 7
	case StatusFailed:
		return -1
	case StatusRefunding:
		return -2
	case StatusRefunded:
		return -3
	case StatusExpired:
		return -4
	default:
		return 0
	}
}

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusExpired
}

// ConfirmationsForChain returns the required confirmation count for a
// chain.
func ConfirmationsForChain(chain string) int {
	switch normalizeChain(chain) {
	case "XMR":
		return 10
	case "BTC":
		return 3
	case "ETH":
		return 12
	case "TON":
		return 1
	case "SOL":
		return 32
	case "ARB":
		return 1
	case "BASE":
		return 1
	case "USDC", "USDT":
		return 12
	default:
		return 12
	}
}

func normalizeChain(c string) string {
	out := make([]byte, len(c))
	for i := 0; i < len(c); i++ {
		b := c[i]
		if b >= 'a' && b <= 'z' {
			b -= 32
		}
		out[i] = b
	}
	return string(out)
}

// BridgeOrder is the central domain entity.
type BridgeOrder struct {
	ID     string // opaque 128-bit internal identifier (UUID)
	Handle string // "br_" + 12 hex chars, human-readable

	Direction   string
	SourceChain string
	DestChain   string

	FromAmount   money.Amount
	FromCurrency string
	ToAmount     money.Amount
	ToCurrency   string

	DestAddress    string
	DepositAddress *string

	RateAtCreation float64
	Fee            money.Amount
	FeePercent     float64
	MinReceived    money.Amount
	Slippage       float64

	Status Status
	Step   int16

	DepositTxHash    *string
	WithdrawalTxHash *string

	ConfirmationsCurrent  int
	ConfirmationsRequired int

	TelegramUserID *int64
	IPAddress      *string
	ErrorMessage   *string
	Metadata       map[string]interface{}

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
