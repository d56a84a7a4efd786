package handler

import (
	"fmt"
	"net/http"

	"github.com/modelforge/waitlist/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "waitlist_signups_total{outcome=\"accepted\"} %d\n", snap.SignupsAccepted)
	writeMetric(w, "waitlist_signups_total{outcome=\"duplicate\"} %d\n", snap.SignupsDuplicate)
	writeMetric(w, "waitlist_signups_total{outcome=\"invalid\"} %d\n", snap.SignupsInvalid)
	writeMetric(w, "waitlist_signups_total{outcome=\"unavailable\"} %d\n", snap.SignupsUnavailable)
	writeMetric(w, "waitlist_signup_duration_seconds_count %d\n", snap.SignupDurationCount)
	writeMetric(w, "waitlist_signup_duration_seconds_sum %.6f\n", float64(snap.SignupDurationTotalNs)/1e9)
	writeMetric(w, "waitlist_signups_rate_limited_total %d\n", snap.SignupsRateLimited)

	writeMetric(w, "waitlist_broadcast_subscribers %d\n", snap.Subscribers)
	writeMetric(w, "waitlist_broadcast_messages_delivered_total %d\n", snap.BroadcastsDelivered)
	writeMetric(w, "waitlist_broadcast_subscribers_dropped_total %d\n", snap.BroadcastsDropped)

	writeMetric(w, "waitlist_relay_published_total{status=\"success\"} %d\n", snap.RelayPublished)
	writeMetric(w, "waitlist_relay_published_total{status=\"dropped\"} %d\n", snap.RelayDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
