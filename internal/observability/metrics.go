// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemarket_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "livemarket_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FanoutPublishes counts realtime publishes by channel scope, event and outcome.
	FanoutPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemarket_fanout_publishes_total",
		Help: "Realtime event publishes by scope, event and outcome",
	}, []string{"scope", "event", "outcome"})

	// RoomTransitions counts committed status changes.
	RoomTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemarket_room_transitions_total",
		Help: "Room status transitions by from and to status",
	}, []string{"from", "to"})

	RoomHeartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemarket_room_heartbeats_total",
		Help: "Heartbeats accepted",
	})

	// SweepExpirations counts rooms moved offline by the heartbeat sweep.
	SweepExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livemarket_sweep_expirations_total",
		Help: "Rooms expired by the heartbeat timeout sweep",
	})

	// ChatMessages counts appended messages by kind.
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemarket_chat_messages_total",
		Help: "Chat messages appended by kind",
	}, []string{"kind"})

	// WebSocketSubscribers is the gauge of open subscriber sockets per feed.
	WebSocketSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livemarket_websocket_subscribers",
		Help: "Open websocket subscribers by feed",
	}, []string{"feed"})

	// WebSocketBackpressureDrops counts frames dropped because a subscriber fell behind.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livemarket_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"feed"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
