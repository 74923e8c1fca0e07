// Package metrics exposes the coordinator's Prometheus instrumentation —
// part of SPEC_FULL.md's ambient stack, grounded on prometheus/client_golang
// the way MOHCentral-opm-stats-api's stats service instruments its own
// request handlers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Registry bundles every counter/gauge the coordinator emits.
type Registry struct {
	GamesStarted      prometheus.Counter
	GamesEnded        prometheus.Counter
	GamesCancelled    prometheus.Counter
	Kills             prometheus.Counter
	Eliminations      *prometheus.CounterVec // labeled by reason
	OperatorTxOutcomes *prometheus.CounterVec // labeled by action, status
	ConnectedPlayers  prometheus.Gauge
	ActiveGames       prometheus.Gauge
}

// NewRegistry constructs and registers every metric against a fresh
// prometheus.Registry (not the global default, so tests can spin up many
// independent Registries without collisions).
func NewRegistry() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	r := &Registry{
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chain_assassin_games_started_total",
			Help: "Total number of games that entered ACTIVE phase.",
		}),
		GamesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chain_assassin_games_ended_total",
			Help: "Total number of games that reached ENDED phase.",
		}),
		GamesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chain_assassin_games_cancelled_total",
			Help: "Total number of games that reached CANCELLED phase.",
		}),
		Kills: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chain_assassin_kills_total",
			Help: "Total number of confirmed kills across all games.",
		}),
		Eliminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_assassin_eliminations_total",
			Help: "Total player eliminations, labeled by reason.",
		}, []string{"reason"}),
		OperatorTxOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chain_assassin_operator_tx_total",
			Help: "Operator transaction submissions, labeled by action and outcome.",
		}, []string{"action", "status"}),
		ConnectedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chain_assassin_connected_players",
			Help: "Current number of authenticated player WebSocket connections.",
		}),
		ActiveGames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chain_assassin_active_games",
			Help: "Current number of games in ACTIVE phase.",
		}),
	}

	reg.MustRegister(
		r.GamesStarted, r.GamesEnded, r.GamesCancelled, r.Kills,
		r.Eliminations, r.OperatorTxOutcomes, r.ConnectedPlayers, r.ActiveGames,
	)
	return r, reg
}

// Handler returns the /metrics HTTP handler for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
