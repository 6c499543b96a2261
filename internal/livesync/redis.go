package livesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRetryMin = 500 * time.Millisecond
	defaultRetryMax = 30 * time.Second
)

// RedisPublisher publishes change signals on Redis so every instance's Relay
// can deliver them to its own subscribers. Until this instance's relay is
// subscribed, or when Redis rejects the publish, the signal is also delivered
// to the local bus directly.
type RedisPublisher struct {
	client *redis.Client
	relay  *Relay
	log    *slog.Logger
}

// NewRedisPublisher returns a publisher paired with the relay that feeds the
// local bus from Redis.
func NewRedisPublisher(client *redis.Client, relay *Relay, log *slog.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, relay: relay, log: log}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, playerID string) error {
	local := p.relay.bus
	channel := local.Signal(playerID)
	if err := p.client.Publish(ctx, channel, "").Err(); err != nil {
		local.Deliver(playerID)
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	if !p.relay.Subscribed() {
		local.Deliver(playerID)
	}
	return nil
}

// Relay forwards signals received from Redis into a local Bus.
type Relay struct {
	client *redis.Client
	bus    *Bus
	log    *slog.Logger

	retryMin time.Duration
	retryMax time.Duration

	subscribed atomic.Bool
	ready      chan struct{}
	readyOnce  sync.Once
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRetryBackoff sets the first and the largest delay between subscription attempts.
func WithRetryBackoff(minDelay, maxDelay time.Duration) RelayOption {
	return func(r *Relay) {
		if minDelay > 0 {
			r.retryMin = minDelay
		}
		if maxDelay >= r.retryMin {
			r.retryMax = maxDelay
		}
	}
}

// NewRelay returns a Relay for bus. Call Run to start it.
func NewRelay(client *redis.Client, bus *Bus, log *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		client:   client,
		bus:      bus,
		log:      log,
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ready is closed once the pattern subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Subscribed reports whether the pattern subscription is currently confirmed.
func (r *Relay) Subscribed() bool {
	return r.subscribed.Load()
}

// Run subscribes to "<prefix>:*" and delivers until ctx is cancelled. A
// failed subscription is retried with exponential backoff.
func (r *Relay) Run(ctx context.Context) error {
	pattern := r.bus.Prefix() + ":*"

	pubsub, err := r.subscribe(ctx, pattern)
	if err != nil {
		return nil
	}
	defer pubsub.Close()
	defer r.subscribed.Store(false)

	r.subscribed.Store(true)
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info("live sync relay subscribed", slog.String("pattern", pattern))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			playerID, ok := r.bus.PlayerFromSignal(msg.Channel)
			if !ok {
				r.log.Debug("relay ignored channel", slog.String("channel", msg.Channel))
				continue
			}
			r.bus.Deliver(playerID)
		}
	}
}

// subscribe blocks until Redis confirms the pattern subscription. It returns
// an error only when ctx ends first.
func (r *Relay) subscribe(ctx context.Context, pattern string) (*redis.PubSub, error) {
	delay := r.retryMin
	for {
		pubsub := r.client.PSubscribe(ctx, pattern)
		_, err := pubsub.Receive(ctx)
		if err == nil {
			return pubsub, nil
		}
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.log.Warn("live sync relay subscribe failed",
			slog.String("pattern", pattern),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, r.retryMax)
	}
}

var _ Publisher = (*RedisPublisher)(nil)
