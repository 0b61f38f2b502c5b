package chainadapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/chainadapter"
)

type stubTransport struct{}

func (stubTransport) Call(_ context.Context, _ string, _ []interface{}) (interface{}, error) {
	return nil, nil
}

func TestRegistry_GetAndSupports(t *testing.T) {
	btc := chainadapter.New("BTC", stubTransport{})
	eth := chainadapter.New("ETH", stubTransport{})
	reg := chainadapter.NewRegistry(btc, eth)

	assert.True(t, reg.Supports("BTC"))
	assert.False(t, reg.Supports("XMR"))

	a, err := reg.Get("ETH")
	require.NoError(t, err)
	assert.Equal(t, "ETH", a.Name())

	_, err = reg.Get("XMR")
	assert.Error(t, err)
}

func TestRegistry_NewDepositAddressUnsupportedChain(t *testing.T) {
	reg := chainadapter.NewRegistry(chainadapter.New("BTC", stubTransport{}))
	_, err := reg.NewDepositAddress(context.Background(), "XMR", "br_abc")
	assert.Error(t, err)
}
