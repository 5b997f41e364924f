package broadcast

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/tractor-shop/internal/domain/order"
)

var _ order.Publisher = (*RedisPublisher)(nil)

// Channel returns the Redis channel carrying snapshots of orderID.
func Channel(orderID string) string {
	return "orders:" + orderID + ":snapshot"
}

// RedisPublisher publishes JSON snapshots to per-order Redis channels.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a RedisPublisher using client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends s to Channel(s.ID).
func (p *RedisPublisher) Publish(ctx context.Context, s order.Snapshot) error {
	if err := p.client.Publish(ctx, Channel(s.ID), EncodeSnapshot(s)).Err(); err != nil {
		return errors.Wrapf(err, "publish snapshot of order %s", s.ID)
	}
	return nil
}

// Multi publishes to every publisher in order, returning the first error
// after all have been tried.
type Multi []order.Publisher

// Publish implements order.Publisher.
func (m Multi) Publish(ctx context.Context, s order.Snapshot) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
