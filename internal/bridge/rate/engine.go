package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/r3e-bridge/bridge-engine/internal/apperr"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const cacheTTL = 30 * time.Second

// Store persists resolved rates for history/sparkline queries.
type Store interface {
	InsertRate(ctx context.Context, d Data) error
	History(ctx context.Context, from, to string, since time.Time) ([]HistoryPoint, error)
}

// Publisher fans out a rate update to subscribers. Implemented by
// internal/bridge/eventbus; declared here to avoid an import cycle.
type Publisher interface {
	PublishRate(ctx context.Context, d Data) error
}

// Engine resolves cross-rates with a TTL cache and an ordered list of
// failover sources (CoinGecko -> Binance -> CoinCap -> UpstreamUnavailable).
type Engine struct {
	redis   *redis.Client
	store   Store
	pub     Publisher
	sources []Source
	log     logger.Logger
}

// New constructs a Engine. sources are tried in order per currency until
// one succeeds; if all fail, GetRate returns an UpstreamUnavailable error.
func New(redisClient *redis.Client, store Store, pub Publisher, log logger.Logger, sources ...Source) *Engine {
	return &Engine{redis: redisClient, store: store, pub: pub, sources: sources, log: log}
}

func cacheKey(from, to string) string {
	return fmt.Sprintf("rate:%s:%s", from, to)
}

// GetRate resolves the current cross-rate from -> to, preferring a fresh
// cache entry, and falls through the source chain on a cache miss.
func (e *Engine) GetRate(ctx context.Context, from, to string) (*Data, error) {
	if from == to {
		return &Data{FromCurrency: from, ToCurrency: to, Rate: 1, FetchedAt: time.Now().UTC(), Source: "identity"}, nil
	}

	if e.redis != nil {
		if raw, err := e.redis.Get(ctx, cacheKey(from, to)).Result(); err == nil {
			var d Data
			if jsonErr := json.Unmarshal([]byte(raw), &d); jsonErr == nil {
				return &d, nil
			}
		}
	}

	fromUSD, fromSrc, err := e.fetchUSD(ctx, from)
	if err != nil {
		return nil, err
	}
	toUSD, _, err := e.fetchUSD(ctx, to)
	if err != nil {
		return nil, err
	}
	if toUSD == 0 {
		return nil, apperr.UpstreamUnavailable("zero price for %s", to)
	}

	d := Data{
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         fromUSD / toUSD,
		FromUSD:      fromUSD,
		ToUSD:        toUSD,
		Source:       fromSrc,
		FetchedAt:    time.Now().UTC(),
	}

	if e.redis != nil {
		if raw, err := json.Marshal(d); err == nil {
			e.redis.Set(ctx, cacheKey(from, to), raw, cacheTTL)
		}
	}
	if e.store != nil {
		if err := e.store.InsertRate(ctx, d); err != nil && e.log != nil {
			e.log.WithError(err).Warn("persist rate history failed")
		}
	}
	if e.pub != nil {
		if err := e.pub.PublishRate(ctx, d); err != nil && e.log != nil {
			e.log.WithError(err).Warn("publish rate update failed")
		}
	}

	return &d, nil
}

// fetchUSD resolves a single currency's USD price, pegging stablecoins
// to 1.0 and walking the source chain on failure.
func (e *Engine) fetchUSD(ctx context.Context, currency string) (float64, string, error) {
	if isStablecoin(currency) {
		return 1.0, "peg", nil
	}

	var lastErr error
	for _, src := range e.sources {
		price, err := src.FetchUSDPrice(ctx, currency)
		if err != nil {
			lastErr = err
			if e.log != nil {
				e.log.WithError(err).WithField("source", src.Name()).WithField("currency", currency).Warn("price source failed, trying next")
			}
			continue
		}
		return price, src.Name(), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no price sources configured")
	}
	return 0, "", apperr.Wrap(apperr.KindUpstreamUnavailable, lastErr, "all price sources failed for %s", currency)
}

// CalculateConversion applies feePercent and slippage to a requested
// amount.
func CalculateConversion(rate Data, fromAmount, feePercent, slippage float64) Conversion {
	fee := fromAmount * feePercent / 100
	toAmount := (fromAmount - fee) * rate.Rate
	minReceived := toAmount * (1 - slippage/100)
	return Conversion{
		Rate:        rate.Rate,
		FromAmount:  fromAmount,
		Fee:         fee,
		FeePercent:  feePercent,
		ToAmount:    toAmount,
		MinReceived: minReceived,
		Slippage:    slippage,
	}
}

// historyInterval maps a named window to a lookback duration.
func historyInterval(interval string) (time.Duration, error) {
	switch interval {
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "24h":
		return 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	case "30d":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, apperr.BadRequest("unsupported history interval %q", interval)
	}
}

// GetHistory returns rate observations for from/to over the named window.
func (e *Engine) GetHistory(ctx context.Context, from, to, interval string) ([]HistoryPoint, error) {
	lookback, err := historyInterval(interval)
	if err != nil {
		return nil, err
	}
	if e.store == nil {
		return nil, apperr.Internal("rate history store not configured")
	}
	return e.store.History(ctx, from, to, time.Now().UTC().Add(-lookback))
}

// Change24h computes the percentage change between the oldest observed
// rate in the last 24h and the current rate, rounded to 2 decimals.
func Change24h(current float64, points []HistoryPoint) float64 {
	if len(points) == 0 || points[0].Rate == 0 {
		return 0
	}
	oldest := points[0].Rate
	pct := (current - oldest) / oldest * 100
	return math.Round(pct*100) / 100
}

// Sparkline extracts just the rate values from history points, oldest
// first, for compact charting responses.
func Sparkline(points []HistoryPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Rate
	}
	return out
}
