package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

const (
	// signalChannel is the Pub/Sub channel lifecycle signals are broadcast on.
	signalChannel = "arb:signals"

	// signalStream mirrors every published signal into a capped Redis stream
	// so consumers that were offline can catch up.
	signalStream = "arb:signals:stream"

	streamMaxLen int64 = 10000
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub for live delivery
// and a Redis Stream as a bounded durable mirror.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish broadcasts a lifecycle signal and appends it to the durable stream.
func (sb *SignalBus) Publish(ctx context.Context, sig domain.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("redis: marshal signal: %w", err)
	}

	pipe := sb.rdb.Pipeline()
	pipe.Publish(ctx, signalChannel, payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: signalStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish signal %s: %w", sig.Kind, err)
	}
	return nil
}

// Subscribe returns a read-only channel of lifecycle signals. The
// subscription closes when the context is cancelled; the returned channel is
// closed at that point as well. Payloads that fail to decode are dropped.
func (sb *SignalBus) Subscribe(ctx context.Context) (<-chan domain.Signal, error) {
	pubsub := sb.rdb.Subscribe(ctx, signalChannel)

	// Verify the subscription is established before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", signalChannel, err)
	}

	out := make(chan domain.Signal, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var sig domain.Signal
				if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
					continue
				}
				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
