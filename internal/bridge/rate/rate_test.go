package rate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateConversion(t *testing.T) {
	conv := CalculateConversion(Data{Rate: 2.0}, 100.0, 1.0, 2.0)
	assert.InDelta(t, 1.0, conv.Fee, 1e-9)
	assert.InDelta(t, 198.0, conv.ToAmount, 1e-9)
	assert.InDelta(t, 194.04, conv.MinReceived, 1e-9)
}

func TestCalculateConversion_ZeroFeeZeroSlippage(t *testing.T) {
	conv := CalculateConversion(Data{Rate: 1.5}, 10.0, 0, 0)
	assert.InDelta(t, 0.0, conv.Fee, 1e-9)
	assert.InDelta(t, 15.0, conv.ToAmount, 1e-9)
	assert.InDelta(t, 15.0, conv.MinReceived, 1e-9)
}

func TestIsStablecoin(t *testing.T) {
	assert.True(t, isStablecoin("USDC"))
	assert.True(t, isStablecoin("USDT"))
	assert.False(t, isStablecoin("BTC"))
}
