package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kittendraw_rooms_active",
			Help: "Number of live rooms",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kittendraw_connections_active",
			Help: "Number of live WebSocket connections",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kittendraw_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	JoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kittendraw_joins_total",
			Help: "Total join attempts",
		},
		[]string{"result"}, // "ok", "room_not_found", "room_full", "already_in_room"
	)

	// Relay metrics
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kittendraw_messages_relayed_total",
			Help: "Total messages relayed to peers",
		},
		[]string{"kind"}, // "draw", "clear", "chat"
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kittendraw_broadcasts_dropped_total",
			Help: "Total outbound messages dropped because a peer send queue was full",
		},
	)

	// Worker metrics
	RoomsSwept = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kittendraw_rooms_swept_total",
			Help: "Total rooms reclaimed by the background sweeper",
		},
		[]string{"reason"}, // "empty", "idle"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kittendraw_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)
)
