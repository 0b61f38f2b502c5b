// Package money implements the fixed-point decimal arithmetic the bridge
// order math needs (fee, conversion, slippage). No decimal-arithmetic
// library is a dependency of this module, so amounts are represented as
// int64 micro-units (1e-8 scale, matching the
// atomic-unit precision BTC/XMR/SOL already require) with float64 used only
// at the edges for percent factors, matching the fixed-point discipline an
// order's quoted amounts need regardless of currency.
package money

import (
	"fmt"
	"math"
	"strconv"
)

// Scale is the number of fractional decimal digits an Amount carries.
const Scale = 8

var scaleFactor = math.Pow10(Scale)

// Amount is a fixed-point value stored as micro-units (value * 10^Scale).
type Amount int64

// FromFloat builds an Amount from a float64 decimal value.
func FromFloat(f float64) Amount {
	return Amount(math.Round(f * scaleFactor))
}

// Float returns the Amount as a float64 decimal value.
func (a Amount) Float() float64 {
	return float64(a) / scaleFactor
}

// String renders the amount with exactly Scale fractional digits, trailing
// zeros included (1.5 renders as "1.50000000").
func (a Amount) String() string {
	s := strconv.FormatFloat(a.Float(), 'f', Scale, 64)
	return s
}

// Add returns a+b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a-b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulPercent returns a * (pct/100), e.g. MulPercent(0.3) for a 0.3% fee.
func (a Amount) MulPercent(pct float64) Amount {
	return FromFloat(a.Float() * pct / 100.0)
}

// MulRate returns a * rate, used for cross-rate conversion.
func (a Amount) MulRate(rate float64) Amount {
	return FromFloat(a.Float() * rate)
}

// IsPositive reports whether the amount is strictly greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// Validate returns an error if the amount is not a legal positive quantity.
func (a Amount) Validate() error {
	if !a.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", a)
	}
	return nil
}
