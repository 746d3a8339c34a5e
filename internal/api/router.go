package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arenaserver/internal/collections"
	"arenaserver/internal/eventlog"
)

// AdminEngine is the narrow slice of *engine.Engine the admin surface reads
// from. Keeping it an interface (rather than importing engine directly)
// lets router tests substitute a stub without spinning up a tick loop.
type AdminEngine interface {
	Stats() map[string]interface{}
	LeaderboardTop(n int) []collections.SkipListEntry
}

// RouterConfig carries everything NewRouter needs to build the admin
// surface. Constructing it has no side effects, so it's safe to use with
// httptest.NewServer in tests.
type RouterConfig struct {
	Engine    AdminEngine
	EventLog  *eventlog.Log
	Spectator *SpectatorHub

	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig
	CORSOrigins     []string
	DisableLogging  bool
}

// NewRouter builds the chi-routed, CORS-protected, rate-limited admin/
// metrics HTTP surface (SPEC_FULL §8), distinct from the game's own UDP
// transport.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rlCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{engine: cfg.Engine, eventLog: cfg.EventLog}

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Get("/leaderboard", h.handleLeaderboard)
		r.Get("/eventlog/stats", h.handleEventLogStats)
	})

	if cfg.Spectator != nil {
		r.Get("/spectator", cfg.Spectator.HandleWebSocket)
	}

	return r
}

type routerHandlers struct {
	engine   AdminEngine
	eventLog *eventlog.Log
}

func (h *routerHandlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
	RecordRequest(r.Method, "/healthz", http.StatusOK, time.Since(start))
}

func (h *routerHandlers) handleState(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeJSON(w, h.engine.Stats())
	RecordRequest(r.Method, "/api/admin/state", http.StatusOK, time.Since(start))
}

func (h *routerHandlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	writeJSON(w, h.engine.LeaderboardTop(20))
	RecordRequest(r.Method, "/api/admin/leaderboard", http.StatusOK, time.Since(start))
}

func (h *routerHandlers) handleEventLogStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.eventLog == nil {
		writeJSON(w, map[string]uint64{"total": 0, "dropped": 0})
	} else {
		writeJSON(w, h.eventLog.GetStats())
	}
	RecordRequest(r.Method, "/api/admin/eventlog/stats", http.StatusOK, time.Since(start))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
