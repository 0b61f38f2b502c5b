// Package ratelimit implements a sliding-window, per-(IP,endpoint)
// request limiter: a Redis sorted set keyed "rl:{ip}:{endpoint}" holding
// one member per request in the current window, trimmed with
// ZREMRANGEBYSCORE and measured with ZCARD inside a single pipelined
// round trip. This enforces a request-rate cap over a sliding time
// window, a different problem than an in-process concurrency semaphore
// would solve.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-redis/redis/v8"
)

// Preset names one of the three limiter configurations the HTTP surface
// applies to rates, order creation, and WebSocket upgrades.
type Preset struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Presets bundles the three named limiter configurations the HTTP
// surface applies to rates, order creation, and WebSocket upgrades.
type Presets struct {
	Rates  Preset
	Orders Preset
	WS     Preset
}

// NewPresets builds the three presets from the operator-configured
// per-minute limits (Config.RateLimitRatesPerMin/RateLimitOrdersPerMin/
// RateLimitWSPerIP), each measured over a one-minute sliding window.
func NewPresets(ratesPerMin, ordersPerMin, wsPerMin int) Presets {
	return Presets{
		Rates:  Preset{Name: "rates", Limit: ratesPerMin, Window: time.Minute},
		Orders: Preset{Name: "orders", Limit: ordersPerMin, Window: time.Minute},
		WS:     Preset{Name: "ws", Limit: wsPerMin, Window: time.Minute},
	}
}

// Limiter enforces a sliding-window request cap per (ip, endpoint).
type Limiter struct {
	client *redis.Client
}

// New constructs a Limiter over an existing Redis client.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func key(ip, endpoint string) string {
	return fmt.Sprintf("rl:%s:%s", ip, endpoint)
}

// Allow records a request from ip against endpoint and reports whether the
// requests in preset's window, this one included, are within preset's
// limit. A denied request is recorded too. It pipelines
// ZADD+ZREMRANGEBYSCORE+ZCARD+EXPIRE in one round trip.
func (l *Limiter) Allow(ctx context.Context, ip, endpoint string, preset Preset) (bool, error) {
	k := key(ip, endpoint)
	now := time.Now()
	windowStart := now.Add(-preset.Window)
	// Suffix with a random uint32 so two requests landing on the same
	// clock tick don't collide on the same ZSET member, which would
	// silently overwrite the first member's score instead of adding a
	// second entry and undercount concurrent requests.
	member := fmt.Sprintf("%d:%d", now.UnixNano(), rand.Uint32())

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, k, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, k, "0", fmt.Sprintf("%d", windowStart.UnixNano()))
	card := pipe.ZCard(ctx, k)
	pipe.Expire(ctx, k, preset.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit pipeline: %w", err)
	}

	count, err := card.Result()
	if err != nil {
		return false, fmt.Errorf("rate limit cardinality: %w", err)
	}
	return count <= int64(preset.Limit), nil
}
