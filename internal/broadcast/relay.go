package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelforge/waitlist/internal/metrics"
)

const (
	// RelayChannel is the Redis pub/sub channel carrying count updates.
	RelayChannel = "waitlist:count_updates"

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond
)

// RedisRelay shares count updates between API replicas. Notify delivers to
// the local hub and publishes to Redis; Run feeds values published by other
// replicas into the local hub. A value seen twice is skipped by the hub.
type RedisRelay struct {
	redis   *redis.Client
	hub     *Hub
	logger  *slog.Logger
	metrics metrics.Recorder
	channel string

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRedisRelay creates a relay bound to hub.
func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger, recorder metrics.Recorder) *RedisRelay {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedisRelay{
		redis:   client,
		hub:     hub,
		logger:  logger.With("component", "broadcast.relay"),
		metrics: recorder,
		channel: RelayChannel,
	}
}

// Publish sends count to every replica synchronously.
func (r *RedisRelay) Publish(ctx context.Context, count int64) error {
	if err := r.redis.Publish(ctx, r.channel, strconv.FormatInt(count, 10)).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Notify delivers count to local subscribers, then publishes it without
// blocking the caller. When Redis is unreachable only local subscribers
// see the value.
func (r *RedisRelay) Notify(count int64) {
	r.hub.Notify(count)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		if err := r.Publish(ctx, count); err != nil {
			r.logger.Warn("failed to publish count update",
				"count", count,
				"error", err,
			)
			r.metrics.IncRelayPublished("dropped")
			return
		}
		r.metrics.IncRelayPublished("success")
	}()
}

// Run subscribes to the relay channel and blocks until ctx is cancelled
// or Shutdown is called.
func (r *RedisRelay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("relay already started")
	}
	r.started = true
	r.done = make(chan struct{})
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	defer close(r.done)

	pubsub := r.redis.Subscribe(ctx, r.channel)
	defer func() {
		_ = pubsub.Close()
	}()

	// Wait for confirmation so publishes after Run returns a subscription
	// are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.logger.Info("relay subscribed", "channel", r.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			count, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				r.logger.Warn("ignoring malformed relay payload", "payload", msg.Payload)
				continue
			}
			r.hub.Notify(count)
		}
	}
}

// Shutdown stops Run and waits for it to return.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (r *RedisRelay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("relay shutdown timed out")
		return ctx.Err()
	}
}
