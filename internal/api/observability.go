package api

import (
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are kept low-cardinality: no per-player or per-world labels, since
// either is effectively unbounded under a connection flood.
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent advancing every world in one tick",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	worldCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_world_count",
		Help: "Current number of live worlds",
	})

	playerCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_player_count",
		Help: "Current number of connected players",
	})

	lobbyCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_lobby_count",
		Help: "Current number of pending lobbies",
	})

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_event_log_total",
		Help: "Total audit-log events accepted",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_event_log_dropped_total",
		Help: "Audit-log events dropped due to rate limiting or a full buffer",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_connection_rejected_total",
		Help: "Connections or messages rejected before reaching the simulation",
	}, []string{"reason"}) // bounded: "rate_limit", "origin", "invalid", "ws_limit"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arena_http_request_duration_seconds",
		Help:    "Admin HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_http_requests_total",
		Help: "Total admin HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_spectator_connections_active",
		Help: "Currently active spectator WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_spectator_messages_total",
		Help: "Total spectator snapshot broadcasts sent",
	})
)

// ObservabilityConfig configures the pprof/metrics debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // MUST stay loopback in production
}

// StartDebugServer starts the internal observability server. It MUST bind
// to localhost: pprof exposes enough to be a DoS vector if reachable
// externally.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	go func() {
		http.ListenAndServe(cfg.ListenAddr, mux)
	}()

	return nil
}

// RecordTick records one tick's wall-clock duration.
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

// UpdateWorldCount updates the live-world gauge.
func UpdateWorldCount(n int) { worldCount.Set(float64(n)) }

// UpdatePlayerCount updates the connected-player gauge.
func UpdatePlayerCount(n int) { playerCount.Set(float64(n)) }

// UpdateLobbyCount updates the pending-lobby gauge.
func UpdateLobbyCount(n int) { lobbyCount.Set(float64(n)) }

// UpdateEventLogStats mirrors the event log's running totals into counters.
// Since Prometheus counters only increase via Inc/Add and the log already
// tracks its own cumulative totals, this sets them via Add against the last
// observed delta held by the caller.
func UpdateEventLogStats(totalDelta, droppedDelta uint64) {
	eventLogTotal.Add(float64(totalDelta))
	eventLogDropped.Add(float64(droppedDelta))
}

// RecordConnectionRejected increments the rejection counter for reason,
// which must be one of a small bounded set ("rate_limit", "origin",
// "invalid", "ws_limit").
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records one admin HTTP request's outcome.
func RecordRequest(method, endpoint string, status int, d time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(d.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateSpectatorConnections updates the active-spectator gauge.
func UpdateSpectatorConnections(n int) { wsConnectionsActive.Set(float64(n)) }

// IncrementSpectatorMessages increments the spectator broadcast counter.
func IncrementSpectatorMessages() { wsMessagesTotal.Inc() }
