package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollroom_ws_active_connections",
			Help: "Active WebSocket connections",
		},
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollroom_broadcasts_total",
			Help: "Events fanned out to room members",
		},
		[]string{"event"},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollroom_broadcasts_dropped_total",
			Help: "Broadcasts dropped because the broadcast channel was full",
		},
	)

	// Room metrics
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollroom_rooms_active",
			Help: "Rooms currently held in memory",
		},
	)

	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollroom_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	VotesCast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollroom_votes_total",
			Help: "Total accepted votes",
		},
	)

	VotesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollroom_votes_rejected_total",
			Help: "Votes rejected, by reason",
		},
		[]string{"reason"},
	)
)
