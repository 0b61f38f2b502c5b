package httpapi

import (
	"net/http"
	"strings"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/metrics"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
)

func splitDirection(direction string) (from, to string, err error) {
	parts := strings.SplitN(direction, "_to_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperr.BadRequest("direction must be formatted FROM_to_TO")
	}
	return parts[0], parts[1], nil
}

func (h *Handler) getRate(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	from, to, err := splitDirection(direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	d, err := h.rates.GetRate(r.Context(), from, to)
	if err != nil {
		metrics.RateFetches.WithLabelValues("engine", "error").Inc()
		writeAppError(w, err)
		return
	}
	metrics.RateFetches.WithLabelValues(d.Source, "ok").Inc()

	history, err := h.rates.GetHistory(r.Context(), from, to, "24h")
	var change24h float64
	var sparkline []float64
	if err == nil {
		change24h = rate.Change24h(d.Rate, history)
		sparkline = rate.Sparkline(history)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from_currency": d.FromCurrency,
		"to_currency":   d.ToCurrency,
		"rate":          d.Rate,
		"source":        d.Source,
		"fetched_at":    d.FetchedAt,
		"change_24h":    change24h,
		"sparkline":     sparkline,
	})
}

func (h *Handler) getRateHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := splitDirection(q.Get("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	period := q.Get("period")
	if period == "" {
		period = "24h"
	}

	points, err := h.rates.GetHistory(r.Context(), from, to, period)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from_currency": from,
		"to_currency":   to,
		"period":        period,
		"points":        points,
	})
}
