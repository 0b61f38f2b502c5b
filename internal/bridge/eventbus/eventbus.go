// Package eventbus implements the order/rate pub-sub fan-out over
// Redis: publishes are fire-and-forget over a shared connection, while
// each subscription gets its own dedicated connection since Redis
// pub/sub subscribe mode is connection-exclusive.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/rate"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const ratesChannel = "rates"

func orderChannel(handle string) string {
	return fmt.Sprintf("order:%s", handle)
}

// OrderEvent is published whenever an order's status changes.
type OrderEvent struct {
	Handle string      `json:"handle"`
	Status string      `json:"status"`
	Step   int16       `json:"step"`
	Detail interface{} `json:"detail,omitempty"`
}

// Bus publishes and subscribes to order/rate events over Redis.
type Bus struct {
	client *redis.Client
	log    logger.Logger
}

// New constructs a Bus over an existing Redis client.
func New(client *redis.Client, log logger.Logger) *Bus {
	return &Bus{client: client, log: log}
}

// PublishOrder fans out an order status change to subscribers of
// order:{handle}. Delivery is best-effort: a publish error is logged,
// never returned to the caller's critical path.
func (b *Bus) PublishOrder(ctx context.Context, evt OrderEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if err := b.client.Publish(ctx, orderChannel(evt.Handle), payload).Err(); err != nil {
		if b.log != nil {
			b.log.WithError(err).WithField("handle", evt.Handle).Warn("publish order event failed")
		}
		return err
	}
	return nil
}

// PublishRate fans out a resolved rate to subscribers of the global
// "rates" channel, satisfying rate.Publisher.
func (b *Bus) PublishRate(ctx context.Context, d rate.Data) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal rate event: %w", err)
	}
	if err := b.client.Publish(ctx, ratesChannel, payload).Err(); err != nil {
		if b.log != nil {
			b.log.WithError(err).Warn("publish rate event failed")
		}
		return err
	}
	return nil
}

// SubscribeOrder opens a dedicated connection subscribed to
// order:{handle}, returning the channel updates arrive on. Callers must
// call the returned close func when done.
func (b *Bus) SubscribeOrder(ctx context.Context, handle string) (<-chan *redis.Message, func() error) {
	sub := b.client.Subscribe(ctx, orderChannel(handle))
	return sub.Channel(), sub.Close
}

// SubscribeRates opens a dedicated connection subscribed to the global
// rates channel.
func (b *Bus) SubscribeRates(ctx context.Context) (<-chan *redis.Message, func() error) {
	sub := b.client.Subscribe(ctx, ratesChannel)
	return sub.Channel(), sub.Close
}

var _ rate.Publisher = (*Bus)(nil)
