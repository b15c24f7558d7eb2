// Package server exposes the telemetry HTTP surface: the gated push
// endpoints the game server posts to, and the read-only snapshot, history,
// log-aggregate and probe endpoints the community site polls.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/parkview-rp/telemetry/internal/eventlog"
	"github.com/parkview-rp/telemetry/internal/gate"
	"github.com/parkview-rp/telemetry/internal/history"
	"github.com/parkview-rp/telemetry/internal/influx"
	"github.com/parkview-rp/telemetry/internal/probe"
	"github.com/parkview-rp/telemetry/internal/store"
	"github.com/parkview-rp/telemetry/internal/ws"
)

// RouterConfig contains all dependencies needed to construct the router.
// Optional fields (Hub, Influx, LogWriter) may be nil; the corresponding
// features are simply skipped.
type RouterConfig struct {
	Gate      *gate.Gate
	Stores    *store.Registry
	History   *history.Recorder
	LogReader *eventlog.Reader
	LogWriter *eventlog.Writer
	Probe     *probe.Probe
	Hub       *ws.Hub
	Influx    *influx.Manager
	Logger    *slog.Logger

	// CORSOrigins overrides the allowed browser origins. Nil keeps the
	// localhost development default.
	CORSOrigins []string

	// DisableRequestLogging turns off the request logger middleware.
	DisableRequestLogging bool
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It is pure: no goroutines, no listeners, safe for httptest.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()

	if !cfg.DisableRequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := newHandlers(cfg)

	r.Route("/api", func(r chi.Router) {
		r.Route("/live", func(r chi.Router) {
			r.Post("/positions", h.handlePush("positions", cfg.Stores.Positions))
			r.Post("/calls", h.handlePush("calls", cfg.Stores.Calls))
			r.Post("/units", h.handlePush("units", cfg.Stores.Units))

			r.Get("/positions", h.handleGetPositions)
			r.Get("/calls", h.handleGetCollection("calls", cfg.Stores.Calls))
			r.Get("/units", h.handleGetCollection("units", cfg.Stores.Units))
			r.Get("/history", h.handleGetHistory)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Post("/", h.handleLogIngest)
			r.Get("/", h.handleLogQuery)
			r.Get("/stats", h.handleLogStats)
		})

		r.Route("/server", func(r chi.Router) {
			r.Get("/status", h.handleServerStatus)
			r.Get("/players", h.handleServerPlayers)
		})
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeHTTP)
	}

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
