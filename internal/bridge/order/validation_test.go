package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	cases := []struct {
		name    string
		chain   string
		address string
		wantErr bool
	}{
		{"valid eth", "ETH", "0x1234567890abcdef1234567890abcdef12345678", false},
		{"invalid eth missing hex", "ETH", "0xzzz", true},
		{"valid bitcoin bech32", "BTC", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", false},
		{"valid bitcoin legacy", "BTC", "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2", false},
		{"empty address", "ETH", "", true},
		{"unsupported chain", "DOGE", "whatever", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateAddress(c.chain, c.address)
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSlippage(t *testing.T) {
	assert.NoError(t, ValidateSlippage(0.5))
	assert.NoError(t, ValidateSlippage(0.1))
	assert.NoError(t, ValidateSlippage(5.0))
	assert.Error(t, ValidateSlippage(0.05))
	assert.Error(t, ValidateSlippage(5.1))
}

func TestIsSupportedChain(t *testing.T) {
	assert.True(t, IsSupportedChain("eth"))
	assert.True(t, IsSupportedChain("BTC"))
	assert.False(t, IsSupportedChain("DOGE"))
}
