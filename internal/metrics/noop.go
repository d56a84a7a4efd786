package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSignup is a no-op.
func (n *NoopRecorder) IncSignup(outcome string) {}

// ObserveSignupDuration is a no-op.
func (n *NoopRecorder) ObserveSignupDuration(duration time.Duration) {}

// SetSubscribers is a no-op.
func (n *NoopRecorder) SetSubscribers(count int) {}

// IncBroadcastDelivered is a no-op.
func (n *NoopRecorder) IncBroadcastDelivered() {}

// IncBroadcastDropped is a no-op.
func (n *NoopRecorder) IncBroadcastDropped() {}

// IncRelayPublished is a no-op.
func (n *NoopRecorder) IncRelayPublished(status string) {}

// IncSignupRateLimited is a no-op.
func (n *NoopRecorder) IncSignupRateLimited() {}
