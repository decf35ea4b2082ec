// Package redis carries call lifecycle events over Redis pub/sub.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CallsChannel carries the events of every call.
const CallsChannel = "calls"

const (
	callChannelPrefix = "call:"
	defaultBuffer     = 64
)

// CallChannel returns the channel carrying events for one conversation.
func CallChannel(conversationID string) string {
	return callChannelPrefix + conversationID
}

// Config locates the Redis server.
type Config struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// PubSub publishes call events and streams them back to subscribers.
type PubSub struct {
	client *redis.Client
	buffer int
}

// Option configures a PubSub.
type Option func(*PubSub)

// WithBuffer sets how many payloads a subscription holds before the reader
// must catch up.
func WithBuffer(n int) Option {
	return func(ps *PubSub) {
		if n > 0 {
			ps.buffer = n
		}
	}
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, cfg Config, opts ...Option) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping %s: %w", cfg.Addr, err)
	}

	ps := &PubSub{client: client, buffer: defaultBuffer}
	for _, opt := range opts {
		opt(ps)
	}
	return ps, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// PublishCall sends payload to CallsChannel and to the conversation's own
// channel. Both publishes are attempted even if the first fails.
func (ps *PubSub) PublishCall(ctx context.Context, conversationID string, payload []byte) error {
	var errs []error
	for _, ch := range []string{CallsChannel, CallChannel(conversationID)} {
		if err := ps.client.Publish(ctx, ch, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("redis.PubSub.PublishCall: %w", err)
	}
	return nil
}

// Subscribe streams payloads from channel until ctx is done or stop is
// called. The returned channel is closed when the subscription ends.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: %s: %w", channel, err)
	}

	var once sync.Once
	stop := func() { once.Do(func() { _ = sub.Close() }) }

	out := make(chan []byte, ps.buffer)
	msgs := sub.Channel(redis.WithChannelSize(ps.buffer))

	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, stop, nil
}
