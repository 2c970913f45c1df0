package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"livemarket/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Publisher sends one envelope to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, env Envelope) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, channel string, env Envelope) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, env Envelope) error {
	return f(ctx, channel, env)
}

type multiPublisher []Publisher

// Multi publishes to every non-nil publisher in order and joins their errors.
func Multi(pubs ...Publisher) Publisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) Publish(ctx context.Context, channel string, env Envelope) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, channel, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisPublisher publishes envelopes as JSON on Redis pub/sub channels.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a publisher on an already connected client.
// A nil client turns every call into a no-op.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, env Envelope) error {
	if p.rdb == nil {
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.rdb.Publish(ctx, channel, data).Err()
}

// StartSubscriber subscribes to the global channel and every room channel
// and calls onMessage for each delivery until ctx is cancelled.
func (p *RedisPublisher) StartSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if p.rdb == nil {
		return nil
	}
	sub := p.rdb.PSubscribe(ctx, GlobalChannel, roomChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to room channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in room subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
