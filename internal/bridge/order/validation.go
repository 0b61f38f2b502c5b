package order

import (
	"regexp"
	"strings"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
)

// SupportedChains is the fixed chain allow-list.
var SupportedChains = []string{"XMR", "BTC", "ETH", "ARB", "BASE", "TON", "SOL", "USDC", "USDT"}

func IsSupportedChain(chain string) bool {
	for _, c := range SupportedChains {
		if strings.EqualFold(c, chain) {
			return true
		}
	}
	return false
}

var (
	btcBech32Re = regexp.MustCompile(`^(bc1)[a-zA-HJ-NP-Z0-9]{25,90}$`)
	btcLegacyRe = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)
	ethRe       = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	xmrRe       = regexp.MustCompile(`^[48][0-9A-Za-z]{94}$`)
	tonFriendly = regexp.MustCompile(`^[A-Za-z0-9_-]{48}$`)
	tonRaw      = regexp.MustCompile(`^-?[0-9]+:[a-fA-F0-9]{64}$`)
	solRe       = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// ValidateAddress dispatches to a per-chain format check.
func ValidateAddress(chain, address string) error {
	if address == "" {
		return apperr.BadRequest("destination address required")
	}

	switch strings.ToUpper(chain) {
	case "XMR":
		if !xmrRe.MatchString(address) {
			return apperr.BadRequest("invalid monero address")
		}
	case "BTC":
		if !btcBech32Re.MatchString(address) && !btcLegacyRe.MatchString(address) {
			return apperr.BadRequest("invalid bitcoin address")
		}
	case "ETH", "ARB", "BASE", "USDC", "USDT":
		if !ethRe.MatchString(address) {
			return apperr.BadRequest("invalid EVM address")
		}
	case "TON":
		if !tonFriendly.MatchString(address) && !tonRaw.MatchString(address) {
			return apperr.BadRequest("invalid TON address")
		}
	case "SOL":
		if !solRe.MatchString(address) {
			return apperr.BadRequest("invalid solana address")
		}
	default:
		return apperr.BadRequest("unsupported chain %q", chain)
	}
	return nil
}

// ValidateSlippage enforces the 0.1-5.0%% allowed slippage bound.
func ValidateSlippage(slippage float64) error {
	if slippage < 0.1 || slippage > 5.0 {
		return apperr.BadRequest("slippage must be between 0.1%% and 5.0%%, got %.2f%%", slippage)
	}
	return nil
}
