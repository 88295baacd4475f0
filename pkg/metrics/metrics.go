package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Edit results recorded on EditsTotal.
const (
	EditApplied = "applied"
	EditStale   = "stale"
	EditDenied  = "denied"
	EditFailed  = "failed"
)

var (
	// Connections tracks open WebSocket sessions.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notesync_ws_connections",
			Help: "Number of open realtime connections",
		},
	)

	// ActiveRooms tracks notes with at least one joined session.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notesync_active_rooms",
			Help: "Number of notes with at least one joined session",
		},
	)

	// EditsTotal counts realtime edits by result (applied|stale|denied|failed).
	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notesync_edits_total",
			Help: "Total number of realtime edit attempts",
		},
		[]string{"result"},
	)

	// BroadcastDropped counts outbound messages dropped because a peer queue was full or closed.
	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_broadcast_dropped_total",
			Help: "Total number of outbound realtime messages dropped",
		},
	)

	// AuthFailures counts rejected realtime connection attempts.
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notesync_auth_failures_total",
			Help: "Total number of realtime connections refused for bad credentials",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notesync_api_latency_seconds",
			Help:    "HTTP endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)
