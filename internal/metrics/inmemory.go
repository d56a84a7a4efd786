package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SignupsAccepted       uint64
	SignupsDuplicate      uint64
	SignupsInvalid        uint64
	SignupsUnavailable    uint64
	SignupDurationCount   uint64
	SignupDurationTotalNs int64
	Subscribers           int64
	BroadcastsDelivered   uint64
	BroadcastsDropped     uint64
	RelayPublished        uint64
	RelayDropped          uint64
	SignupsRateLimited    uint64
}

// InMemoryRecorder stores metrics in memory for tests and /metrics.
type InMemoryRecorder struct {
	signupsAccepted       uint64
	signupsDuplicate      uint64
	signupsInvalid        uint64
	signupsUnavailable    uint64
	signupDurationCount   uint64
	signupDurationTotalNs int64
	subscribers           int64
	broadcastsDelivered   uint64
	broadcastsDropped     uint64
	relayPublished        uint64
	relayDropped          uint64
	signupsRateLimited    uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SignupsAccepted:       atomic.LoadUint64(&m.signupsAccepted),
		SignupsDuplicate:      atomic.LoadUint64(&m.signupsDuplicate),
		SignupsInvalid:        atomic.LoadUint64(&m.signupsInvalid),
		SignupsUnavailable:    atomic.LoadUint64(&m.signupsUnavailable),
		SignupDurationCount:   atomic.LoadUint64(&m.signupDurationCount),
		SignupDurationTotalNs: atomic.LoadInt64(&m.signupDurationTotalNs),
		Subscribers:           atomic.LoadInt64(&m.subscribers),
		BroadcastsDelivered:   atomic.LoadUint64(&m.broadcastsDelivered),
		BroadcastsDropped:     atomic.LoadUint64(&m.broadcastsDropped),
		RelayPublished:        atomic.LoadUint64(&m.relayPublished),
		RelayDropped:          atomic.LoadUint64(&m.relayDropped),
		SignupsRateLimited:    atomic.LoadUint64(&m.signupsRateLimited),
	}
}

// IncSignup increments the counter for the given outcome.
// Unknown outcomes are ignored.
func (m *InMemoryRecorder) IncSignup(outcome string) {
	switch outcome {
	case OutcomeAccepted:
		atomic.AddUint64(&m.signupsAccepted, 1)
	case OutcomeDuplicate:
		atomic.AddUint64(&m.signupsDuplicate, 1)
	case OutcomeInvalid:
		atomic.AddUint64(&m.signupsInvalid, 1)
	case OutcomeUnavailable:
		atomic.AddUint64(&m.signupsUnavailable, 1)
	}
}

// ObserveSignupDuration records submission duration.
func (m *InMemoryRecorder) ObserveSignupDuration(duration time.Duration) {
	atomic.AddUint64(&m.signupDurationCount, 1)
	atomic.AddInt64(&m.signupDurationTotalNs, duration.Nanoseconds())
}

// SetSubscribers sets the current subscriber gauge.
func (m *InMemoryRecorder) SetSubscribers(n int) {
	atomic.StoreInt64(&m.subscribers, int64(n))
}

// IncBroadcastDelivered increments delivered message counter.
func (m *InMemoryRecorder) IncBroadcastDelivered() {
	atomic.AddUint64(&m.broadcastsDelivered, 1)
}

// IncBroadcastDropped increments dropped subscriber counter.
func (m *InMemoryRecorder) IncBroadcastDropped() {
	atomic.AddUint64(&m.broadcastsDropped, 1)
}

// IncRelayPublished increments relay publish counter by status.
func (m *InMemoryRecorder) IncRelayPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.relayPublished, 1)
		return
	}
	atomic.AddUint64(&m.relayDropped, 1)
}

// IncSignupRateLimited increments the rate-limited counter.
func (m *InMemoryRecorder) IncSignupRateLimited() {
	atomic.AddUint64(&m.signupsRateLimited, 1)
}
