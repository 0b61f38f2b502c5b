package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/eventbus"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/httpapi"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order/memory"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/ratelimit"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

type fakeRates struct{ data *rate.Data }

func (f *fakeRates) GetRate(_ context.Context, from, to string) (*rate.Data, error) {
	d := *f.data
	d.FromCurrency, d.ToCurrency = from, to
	return &d, nil
}

type fakePublisher struct{}

func (fakePublisher) PublishOrder(context.Context, eventbus.OrderEvent) error { return nil }

type fakeHealth struct{ err error }

func (f fakeHealth) Ready(context.Context) error { return f.err }

func newTestHandler(t *testing.T, health httpapi.HealthChecker) *httpapi.Handler {
	t.Helper()
	store := memory.New()
	rates := &fakeRates{data: &rate.Data{Rate: 2.0, FromUSD: 1.0, ToUSD: 0.5}}
	svc := order.NewService(store, rates, nil, fakePublisher{}, nil, logger.NewNop(), 0.3, 30)
	presets := ratelimit.NewPresets(60, 10, 5)
	return httpapi.New(svc, nil, nil, nil, nil, presets, health, []string{"*"}, logger.NewNop())
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_Healthy(t *testing.T) {
	h := newTestHandler(t, fakeHealth{})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady_Unhealthy(t *testing.T) {
	h := newTestHandler(t, fakeHealth{err: errors.New("postgres: connection refused")})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateOrder_ValidRequest(t *testing.T) {
	h := newTestHandler(t, nil)
	body, err := json.Marshal(map[string]interface{}{
		"source_chain": "BTC",
		"dest_chain":   "ETH",
		"amount":       1.0,
		"dest_address": "0x1234567890abcdef1234567890abcdef12345678",
		"slippage":     1.0,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/order", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var o order.BridgeOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.Equal(t, order.StatusCreated, o.Status)
	assert.Equal(t, "BTC_to_ETH", o.Direction)
}

func TestCreateOrder_ExplicitZeroExpiryExpiresImmediately(t *testing.T) {
	h := newTestHandler(t, nil)
	zero := 0
	body, err := json.Marshal(struct {
		SourceChain   string  `json:"source_chain"`
		DestChain     string  `json:"dest_chain"`
		Amount        float64 `json:"amount"`
		DestAddress   string  `json:"dest_address"`
		Slippage      float64 `json:"slippage"`
		ExpiryMinutes *int    `json:"order_expiry_minutes"`
	}{"BTC", "ETH", 1.0, "0x1234567890abcdef1234567890abcdef12345678", 1.0, &zero})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/order", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var o order.BridgeOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	assert.False(t, o.ExpiresAt.After(o.CreatedAt.Add(time.Second)))
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	h := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/v1/order", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_NotFound(t *testing.T) {
	h := newTestHandler(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/order/br_doesnotexist", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
