// Package broadcast fans count changes out to connected viewers.
//
// Delivery is at-most-once with no backlog: a subscriber only sees values
// broadcast while it is Open, plus one sync message when it joins.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/modelforge/waitlist/internal/metrics"
)

// DefaultQueueSize is the per-subscriber outbound buffer.
const DefaultQueueSize = 16

// Message types on the channel.
const (
	TypeCountUpdate = "count_update"
	TypeGetCount    = "get_count"
)

var (
	// ErrDeliveryFailed is returned when a subscriber cannot accept a message.
	ErrDeliveryFailed = errors.New("broadcast: delivery failed")

	// ErrHubClosed is returned by Join after Close.
	ErrHubClosed = errors.New("broadcast: hub closed")
)

// Message is a server to client frame.
type Message struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// CountSource supplies the authoritative count for sync messages.
type CountSource interface {
	GetCurrentCount(ctx context.Context) (int64, error)
}

// CountSourceFunc adapts a function to CountSource.
type CountSourceFunc func(ctx context.Context) (int64, error)

// GetCurrentCount calls f(ctx).
func (f CountSourceFunc) GetCurrentCount(ctx context.Context) (int64, error) {
	return f(ctx)
}

// Sender writes frames to one subscriber connection.
// Send is only ever called from the subscriber's writer goroutine.
type Sender interface {
	Send(msg Message) error
	Close() error
}

// Hub owns the set of open subscribers.
type Hub struct {
	logger    *slog.Logger
	metrics   metrics.Recorder
	queueSize int

	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	latest      int64
	closed      bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-subscriber queue length.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	h := &Hub{
		logger:      logger.With("component", "broadcast.hub"),
		metrics:     recorder,
		queueSize:   DefaultQueueSize,
		subscribers: make(map[*Subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Join registers conn as an Open subscriber and starts its writer.
// The caller is responsible for sending the sync message.
func (h *Hub) Join(conn Sender) (*Subscriber, error) {
	sub := newSubscriber(h, conn, h.queueSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.close(ErrHubClosed)
		return nil, ErrHubClosed
	}
	sub.open()
	h.subscribers[sub] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	go sub.writeLoop()

	return sub, nil
}

// Leave closes sub and removes it from the set. Safe to call more than once.
func (h *Hub) Leave(sub *Subscriber) {
	h.remove(sub, nil)
}

// Notify delivers count to every Open subscriber without blocking.
// Subscribers whose queue is full are dropped.
func (h *Hub) Notify(count int64) {
	h.mu.Lock()
	if count > h.latest {
		h.latest = count
	}
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.enqueue(count, false); err != nil {
			h.logger.Warn("dropping subscriber", "subscriber", sub.id, "error", err)
			h.metrics.IncBroadcastDropped()
			h.remove(sub, err)
		}
	}
}

// Latest returns the highest count seen by Notify.
func (h *Hub) Latest() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Len returns the number of open subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close closes every subscriber. Later Join calls fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close(ErrHubClosed)
	}
	h.metrics.SetSubscribers(0)
	h.logger.Info("hub closed", "subscribers", len(subs))
}

// Shutdown adapts Close to server.ShutdownFunc.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.Close()
	return nil
}

// syncValue reads the count for a sync message. When the source is
// unavailable the latest broadcast value is used instead, if any.
func (h *Hub) syncValue(ctx context.Context, source CountSource) (int64, bool) {
	if source != nil {
		count, err := source.GetCurrentCount(ctx)
		if err == nil {
			return count, true
		}
		h.logger.Warn("sync count unavailable", "error", err)
	}
	if latest := h.Latest(); latest > 0 {
		return latest, true
	}
	return 0, false
}

func (h *Hub) remove(sub *Subscriber, reason error) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	n := len(h.subscribers)
	h.mu.Unlock()

	sub.close(reason)
	if ok {
		h.metrics.SetSubscribers(n)
	}
}
