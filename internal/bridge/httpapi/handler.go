// Package httpapi exposes the bridge engine's /v1/* REST and WebSocket
// surface: a handler struct plus decodeJSON/writeJSON/writeError
// helpers, routed through chi.Router.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/adminauth"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/eventbus"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/metrics"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/order"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
	"github.com/r3e-bridge/bridge-engine/internal/bridge/ratelimit"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

// HealthChecker reports whether a backing dependency is reachable, used
// by GET /ready.
type HealthChecker interface {
	Ready(ctx context.Context) error
}

// Handler bundles every collaborator the HTTP surface needs.
type Handler struct {
	orders  *order.Service
	rates   *rate.Engine
	auth    *adminauth.Authenticator
	bus     *eventbus.Bus
	limits  *ratelimit.Limiter
	presets ratelimit.Presets
	health  HealthChecker
	log     logger.Logger
	corsOrigins []string
}

// New constructs a Handler. health may be nil, in which case /ready
// always reports healthy. presets configures the per-route rate limits
// (see ratelimit.NewPresets).
func New(orders *order.Service, rates *rate.Engine, auth *adminauth.Authenticator, bus *eventbus.Bus, limits *ratelimit.Limiter, presets ratelimit.Presets, health HealthChecker, corsOrigins []string, log logger.Logger) *Handler {
	return &Handler{orders: orders, rates: rates, auth: auth, bus: bus, limits: limits, presets: presets, health: health, corsOrigins: corsOrigins, log: log}
}

// Router builds the chi.Router exposing every REST and WebSocket
// endpoint this engine serves.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)
	r.Use(metrics.Instrument)

	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.With(h.rateLimitPreset(h.presets.Orders)).Post("/order", h.createOrder)
		v1.Get("/order/{handle}", h.getOrder)
		v1.Post("/order/{handle}/cancel", h.cancelOrder)
		v1.Get("/orders", h.listOrders)

		v1.With(h.rateLimitPreset(h.presets.Rates)).Get("/rate", h.getRate)
		v1.With(h.rateLimitPreset(h.presets.Rates)).Get("/rate/history", h.getRateHistory)

		v1.Post("/admin/login", h.adminLogin)
		v1.With(h.requireAdmin).Get("/admin/stats", h.adminStats)
		v1.With(h.requireAdmin).Post("/admin/order/{handle}/refund", h.adminRefund)

		v1.With(h.rateLimitPreset(h.presets.WS)).Get("/ws/order/{handle}", h.wsOrder)
		v1.With(h.rateLimitPreset(h.presets.WS)).Get("/ws/rates", h.wsRates)
	})

	return r
}

func (h *Handler) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(h.corsOrigins))
	for _, o := range h.corsOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed["*"] || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) rateLimitPreset(preset ratelimit.Preset) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.limits == nil {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := h.limits.Allow(r.Context(), clientIP(r), r.URL.Path, preset)
			if err != nil {
				h.log.WithError(err).Warn("rate limiter check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeError(w, http.StatusTooManyRequests, apperr.RateLimited("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// statusFor maps an apperr.Kind to its canonical HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ready(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
