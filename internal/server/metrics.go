package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus instruments.
type Metrics struct {
	ConnectionsActive  prometheus.Gauge
	PlayersSeated      prometheus.Gauge
	HandsPlayed        prometheus.Counter
	ActionsTotal       *prometheus.CounterVec
	ActionsRejected    prometheus.Counter
	TurnTimeouts       prometheus.Counter
	SettlementFailures prometheus.Counter
	RoomsQuarantined   prometheus.Counter
}

// NewMetrics registers the server metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holdem_connections_active",
			Help: "Open WebSocket connections.",
		}),
		PlayersSeated: factory.NewGauge(prometheus.GaugeOpts{
			Name: "holdem_players_seated",
			Help: "Players currently bound to a room.",
		}),
		HandsPlayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_hands_played_total",
			Help: "Completed hands across all rooms.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holdem_actions_total",
			Help: "Accepted betting actions by type.",
		}, []string{"action"}),
		ActionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_actions_rejected_total",
			Help: "Betting actions rejected as illegal.",
		}),
		TurnTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_turn_timeouts_total",
			Help: "Turns resolved by the timer instead of the player.",
		}),
		SettlementFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_settlement_failures_total",
			Help: "Settlement writes that exhausted their retries.",
		}),
		RoomsQuarantined: factory.NewCounter(prometheus.CounterOpts{
			Name: "holdem_rooms_quarantined_total",
			Help: "Rooms frozen after an invariant violation.",
		}),
	}
}
