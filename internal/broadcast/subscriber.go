package broadcast

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle of a subscriber connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var subscriberIDs atomic.Uint64

// Subscriber is one connected viewer.
type Subscriber struct {
	id   uint64
	hub  *Hub
	conn Sender

	mu         sync.Mutex
	state      State
	lastQueued int64
	queue      chan int64

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

func newSubscriber(h *Hub, conn Sender, queueSize int) *Subscriber {
	return &Subscriber{
		id:    subscriberIDs.Add(1),
		hub:   h,
		conn:  conn,
		state: StateConnecting,
		queue: make(chan int64, queueSize),
		done:  make(chan struct{}),
	}
}

// ID returns a process-unique subscriber identifier.
func (s *Subscriber) ID() uint64 {
	return s.id
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the subscriber reaches StateClosed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the subscriber closed, if any.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Sync queues a reply carrying count. A count lower than one already
// queued is replaced by the higher value so the sequence never goes back.
func (s *Subscriber) Sync(count int64) error {
	return s.enqueue(count, true)
}

func (s *Subscriber) open() {
	s.mu.Lock()
	if s.state == StateConnecting {
		s.state = StateOpen
	}
	s.mu.Unlock()
}

// enqueue hands count to the writer. Values not above the last queued one
// are skipped unless force is set, in which case the higher of the two is
// sent.
func (s *Subscriber) enqueue(count int64, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		return fmt.Errorf("%w: subscriber %s", ErrDeliveryFailed, s.state)
	}
	if count <= s.lastQueued && !force {
		return nil
	}
	if count < s.lastQueued {
		count = s.lastQueued
	}

	select {
	case s.queue <- count:
		s.lastQueued = count
		return nil
	default:
		return fmt.Errorf("%w: queue full", ErrDeliveryFailed)
	}
}

func (s *Subscriber) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case count := <-s.queue:
			if err := s.conn.Send(Message{Type: TypeCountUpdate, Count: count}); err != nil {
				select {
				case <-s.done:
					return
				default:
				}
				s.hub.logger.Debug("subscriber write failed", "subscriber", s.id, "error", err)
				s.hub.metrics.IncBroadcastDropped()
				s.hub.remove(s, fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
				return
			}
			s.hub.metrics.IncBroadcastDelivered()
		}
	}
}

func (s *Subscriber) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.err = reason
		s.mu.Unlock()

		close(s.done)
		_ = s.conn.Close()
	})
}
