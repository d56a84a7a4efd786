// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Signup outcomes passed to IncSignup.
const (
	OutcomeAccepted    = "accepted"
	OutcomeDuplicate   = "duplicate"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Signup metrics
	IncSignup(outcome string)
	ObserveSignupDuration(duration time.Duration)

	// Broadcast metrics
	SetSubscribers(n int)
	IncBroadcastDelivered()
	IncBroadcastDropped()            // slow or failed subscriber removed
	IncRelayPublished(status string) // status: "success" or "dropped"

	// Rate limiting
	IncSignupRateLimited()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
