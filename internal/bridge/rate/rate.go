// Package rate implements the rate engine: a TTL-cached, multi-source
// price lookup with cross-rate derivation, fee/slippage conversion math,
// and history/sparkline queries.
package rate

import (
	"context"
	"time"
)

// stablecoins are pegged to 1.0 USD rather than fetched from a source.
var stablecoins = map[string]bool{
	"USDC": true,
	"USDT": true,
	"DAI":  true,
}

func isStablecoin(currency string) bool {
	return stablecoins[currency]
}

// Point is one source price observation in USD terms.
type Point struct {
	Currency  string
	PriceUSD  float64
	Source    string
	FetchedAt time.Time
}

// Data is the resolved cross-rate between two currencies.
type Data struct {
	FromCurrency string
	ToCurrency   string
	Rate         float64
	FromUSD      float64
	ToUSD        float64
	Source       string
	FetchedAt    time.Time
}

// Conversion is the result of applying the bridge fee and slippage
// tolerance to a requested amount.
type Conversion struct {
	Rate        float64
	FromAmount  float64
	Fee         float64
	FeePercent  float64
	ToAmount    float64
	MinReceived float64
	Slippage    float64
}

// HistoryPoint is one row surfaced by GetHistory/sparkline queries.
type HistoryPoint struct {
	Rate float64
	At   time.Time
}

// Source fetches a USD-denominated price for a currency from one
// upstream provider (CoinGecko-shaped, Binance-shaped, CoinCap-shaped,
// ...). Implementations must be safe for concurrent use.
type Source interface {
	Name() string
	FetchUSDPrice(ctx context.Context, currency string) (float64, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, currency string) (float64, error)
}

func (f SourceFunc) Name() string { return f.SourceName }

func (f SourceFunc) FetchUSDPrice(ctx context.Context, currency string) (float64, error) {
	return f.Fn(ctx, currency)
}
