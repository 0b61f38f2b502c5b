package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/eventbus"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order/memory"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
)

type fakeRates struct {
	data *rate.Data
	err  error
}

func (f *fakeRates) GetRate(_ context.Context, from, to string) (*rate.Data, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := *f.data
	d.FromCurrency, d.ToCurrency = from, to
	return &d, nil
}

type fakePublisher struct {
	events []eventbus.OrderEvent
}

func (f *fakePublisher) PublishOrder(_ context.Context, evt eventbus.OrderEvent) error {
	f.events = append(f.events, evt)
	return nil
}

func newService(t *testing.T) (*order.Service, *fakePublisher) {
	t.Helper()
	store := memory.New()
	rates := &fakeRates{data: &rate.Data{Rate: 2.0, FromUSD: 1.0, ToUSD: 0.5}}
	pub := &fakePublisher{}
	svc := order.NewService(store, rates, nil, pub, nil, nil, 0.3, 30)
	return svc, pub
}

func TestCreate_ValidRequest(t *testing.T) {
	svc, pub := newService(t)
	o, err := svc.Create(context.Background(), order.CreateRequest{
		SourceChain: "BTC",
		DestChain:   "ETH",
		FromAmount:  1.0,
		DestAddress: "0x1234567890abcdef1234567890abcdef12345678",
		Slippage:    1.0,
		FeePercent:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCreated, o.Status)
	assert.Equal(t, "BTC_to_ETH", o.Direction)
	assert.Len(t, pub.events, 1)
}

func TestCreate_RejectsSameChain(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), order.CreateRequest{
		SourceChain: "BTC",
		DestChain:   "BTC",
		FromAmount:  1.0,
		DestAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		Slippage:    1.0,
	})
	assert.Error(t, err)
}

func TestCreate_RejectsInvalidAddress(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), order.CreateRequest{
		SourceChain: "BTC",
		DestChain:   "ETH",
		FromAmount:  1.0,
		DestAddress: "not-an-address",
		Slippage:    1.0,
	})
	assert.Error(t, err)
}

func TestAdvanceStatus_ConflictOnStaleExpectedStatus(t *testing.T) {
	svc, _ := newService(t)
	o, err := svc.Create(context.Background(), order.CreateRequest{
		SourceChain: "BTC",
		DestChain:   "ETH",
		FromAmount:  1.0,
		DestAddress: "0x1234567890abcdef1234567890abcdef12345678",
		Slippage:    1.0,
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), o.Handle, order.StatusSigning, order.StatusSending, nil)
	assert.Error(t, err)
}

func TestCancel_MovesAwaitingDepositToExpired(t *testing.T) {
	svc, _ := newService(t)
	o, err := svc.Create(context.Background(), order.CreateRequest{
		SourceChain: "BTC",
		DestChain:   "ETH",
		FromAmount:  1.0,
		DestAddress: "0x1234567890abcdef1234567890abcdef12345678",
		Slippage:    1.0,
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(context.Background(), o.Handle, order.StatusCreated, order.StatusAwaitingDeposit, nil)
	require.NoError(t, err)

	updated, err := svc.Cancel(context.Background(), o.Handle)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExpired, updated.Status)
	require.NotNil(t, updated.ErrorMessage)
}
