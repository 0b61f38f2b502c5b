package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/metrics"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
)

type createOrderRequest struct {
	SourceChain    string  `json:"source_chain"`
	DestChain      string  `json:"dest_chain"`
	Amount         float64 `json:"amount"`
	DestAddress    string  `json:"dest_address"`
	Slippage       float64 `json:"slippage,omitempty"`
	TelegramUserID *int64  `json:"telegram_user_id,omitempty"`
	// ExpiryMinutes overrides the configured default order expiry.
	// Pointer so an explicit 0 (test-only: expire on the next sweep
	// tick) is distinguishable from an omitted field.
	ExpiryMinutes *int `json:"order_expiry_minutes,omitempty"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.BadRequest("invalid request body: %v", err))
		return
	}
	if req.Slippage <= 0 {
		req.Slippage = 1.0
	}

	ip := clientIP(r)
	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		SourceChain:    req.SourceChain,
		DestChain:      req.DestChain,
		FromAmount:     req.Amount,
		DestAddress:    req.DestAddress,
		Slippage:       req.Slippage,
		ExpiryMinutes:  req.ExpiryMinutes,
		TelegramUserID: req.TelegramUserID,
		IPAddress:      &ip,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	metrics.OrdersCreated.WithLabelValues(o.Direction).Inc()
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	o, err := h.orders.Get(r.Context(), handle)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	o, err := h.orders.Cancel(r.Context(), handle)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.ListFilter{
		Limit:  atoiDefault(q.Get("limit"), 20),
		Offset: atoiDefault(q.Get("offset"), 0),
	}
	if raw := q.Get("telegram_user_id"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.TelegramUserID = &v
		}
	}

	orders, total, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func atoiDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
