package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the quiz server.
//
// Naming convention: namespace_subsystem_name
// - namespace: party_quiz (application-level grouping)
// - subsystem: websocket, room, game (feature-level grouping)
// - name: specific metric (connections_active, commands_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, games, participants)
// - Counter: Cumulative events (commands processed, frames dropped)
// - Histogram: Latency distributions (command processing time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "party_quiz",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms (Gauge - current state)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "party_quiz",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// ActiveGames tracks the current number of running game loops (Gauge - current state)
	ActiveGames = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "party_quiz",
		Subsystem: "game",
		Name:      "games_active",
		Help:      "Current number of running games",
	})

	// RoomParticipants tracks the number of users in each room (GaugeVec with room_id label - current state per room)
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "party_quiz",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of users in each room",
	}, []string{"room_id"})

	// Commands tracks the total number of commands processed (CounterVec - cumulative)
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "party_quiz",
		Subsystem: "websocket",
		Name:      "commands_total",
		Help:      "Total commands processed",
	}, []string{"command", "status"})

	// CommandProcessingDuration tracks the time spent processing commands (HistogramVec - latency distribution)
	CommandProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "party_quiz",
		Subsystem: "websocket",
		Name:      "command_processing_seconds",
		Help:      "Time spent processing commands",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"command"})

	// DroppedFrames tracks outbound frames dropped because a send buffer was full (Counter - cumulative)
	DroppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "party_quiz",
		Subsystem: "websocket",
		Name:      "dropped_frames_total",
		Help:      "Outbound frames dropped due to a full send buffer",
	})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}

func IncGame() {
	ActiveGames.Inc()
}

func DecGame() {
	ActiveGames.Dec()
}
