package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/parkview-rp/telemetry/internal/eventlog"
	"github.com/parkview-rp/telemetry/internal/gate"
	"github.com/parkview-rp/telemetry/internal/geo"
	"github.com/parkview-rp/telemetry/internal/history"
	"github.com/parkview-rp/telemetry/internal/influx"
	"github.com/parkview-rp/telemetry/internal/probe"
	"github.com/parkview-rp/telemetry/internal/store"
	"github.com/parkview-rp/telemetry/internal/ws"
)

// rawHistoryLimit bounds the raw sample tail returned by the history endpoint.
const rawHistoryLimit = 50

type handlers struct {
	gate      *gate.Gate
	stores    *store.Registry
	history   *history.Recorder
	logReader *eventlog.Reader
	logWriter *eventlog.Writer
	probe     *probe.Probe
	hub       *ws.Hub
	influx    *influx.Manager
	logger    *slog.Logger
	metrics   *metrics
}

func newHandlers(cfg RouterConfig) *handlers {
	m, err := newMetrics(cfg.Stores, cfg.History)
	if err != nil {
		cfg.Logger.Warn("failed to register ingest metrics", "error", err)
	}
	return &handlers{
		gate:      cfg.Gate,
		stores:    cfg.Stores,
		history:   cfg.History,
		logReader: cfg.LogReader,
		logWriter: cfg.LogWriter,
		probe:     cfg.Probe,
		hub:       cfg.Hub,
		influx:    cfg.Influx,
		logger:    cfg.Logger,
		metrics:   m,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// pushRequest is the envelope the game server posts. Exactly one of the
// collection keys is expected, matching the endpoint.
type pushRequest struct {
	Secret    string         `json:"secret"`
	Positions []store.Record `json:"positions"`
	Calls     []store.Record `json:"calls"`
	Units     []store.Record `json:"units"`
}

func (p *pushRequest) collection(name string) []store.Record {
	switch name {
	case "positions":
		return p.Positions
	case "calls":
		return p.Calls
	default:
		return p.Units
	}
}

// handlePush builds the gated wholesale-replace handler for one store.
// The store is untouched on gate failure or malformed input.
func (h *handlers) handlePush(name string, s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req pushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.metrics.rejected(r.Context(), name, "malformed")
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := h.gate.Verify(req.Secret); err != nil {
			h.metrics.rejected(r.Context(), name, "unauthorized")
			h.logger.Warn("rejected telemetry push", "store", name, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		records := req.collection(name)
		s.Replace(records)
		h.metrics.accepted(r.Context(), name)

		if name == "positions" {
			h.history.Sample(len(records))
			if h.influx != nil {
				h.influx.WritePlayerCount(len(records))
			}
		}
		if h.influx != nil {
			h.influx.WriteIngestTiming(name, len(records), time.Since(start))
		}
		if h.hub != nil {
			h.hub.Broadcast(name, records)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"received": len(records),
		})
	}
}

// handleGetPositions returns the position snapshot with freshness metadata.
// With ?project=latlng each record gains a latLng pair for the web map.
func (h *handlers) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	records, meta := h.stores.Positions.Snapshot()
	if r.URL.Query().Get("project") == "latlng" {
		records = projectRecords(records)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positions":  records,
		"lastUpdate": meta.LastUpdate.UnixMilli(),
		"count":      meta.Count,
	})
}

// handleGetCollection returns the current snapshot of calls or units.
func (h *handlers) handleGetCollection(name string, s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, _ := s.Snapshot()
		if r.URL.Query().Get("project") == "latlng" {
			records = projectRecords(records)
		}
		writeJSON(w, http.StatusOK, map[string]any{name: records})
	}
}

// projectRecords derives map coordinates for records the game server
// pushed. Numeric x/y fields or an "x,y,z" position string both work;
// records without either pass through untouched. Call records may carry a
// route waypoint array, which is normalized to WKT for map overlays.
func projectRecords(records []store.Record) []store.Record {
	out := make([]store.Record, len(records))
	for i, rec := range records {
		cp := make(store.Record, len(rec)+2)
		for k, v := range rec {
			cp[k] = v
		}

		if x, y, ok := recordXY(rec); ok {
			lat, lng := geo.ToLatLng(x, y)
			cp["latLng"] = []float64{lat, lng}
		}
		if route, ok := rec["route"].(string); ok {
			if wkt, err := geo.RouteWKT(route); err == nil {
				cp["routeWkt"] = wkt
			}
		}
		out[i] = cp
	}
	return out
}

func recordXY(rec store.Record) (x, y float64, ok bool) {
	xv, xok := rec["x"].(float64)
	yv, yok := rec["y"].(float64)
	if xok && yok {
		return xv, yv, true
	}
	if s, sok := rec["position"].(string); sok {
		if p, err := geo.ParsePosition(s); err == nil {
			return p.X, p.Y, true
		}
	}
	return 0, 0, false
}

// handleGetHistory returns the hour-bucketed averages plus the raw tail.
func (h *handlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries := h.history.Read()
	raw := entries
	if len(raw) > rawHistoryLimit {
		raw = raw[len(raw)-rawHistoryLimit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history":      h.history.ReadAggregated(),
		"raw":          raw,
		"totalEntries": len(entries),
	})
}

// logIngestRequest is the gated envelope for pushed log events.
type logIngestRequest struct {
	Secret string          `json:"secret"`
	Logs   []eventlog.Event `json:"logs"`
}

func (h *handlers) handleLogIngest(w http.ResponseWriter, r *http.Request) {
	if h.logWriter == nil {
		writeError(w, http.StatusNotFound, "log ingest disabled")
		return
	}

	var req logIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.gate.Verify(req.Secret); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	for _, e := range req.Logs {
		h.logWriter.Record(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"received": len(req.Logs),
	})
}

func (h *handlers) handleLogQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := eventlog.Filter{
		Script:     q.Get("script"),
		Category:   q.Get("category"),
		Identifier: q.Get("identifier"),
		Search:     q.Get("search"),
		Limit:      intParam(q.Get("limit"), eventlog.DefaultQueryLimit),
		Offset:     intParam(q.Get("offset"), 0),
	}

	logs, total := h.logReader.Query(f)
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":   logs,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (h *handlers) handleLogStats(w http.ResponseWriter, r *http.Request) {
	totals := h.logReader.Totals()
	writeJSON(w, http.StatusOK, map[string]any{
		"totalLogs":   totals.TotalLogs,
		"last24Hours": totals.Last24Hours,
		"byCategory":  h.logReader.TopByCategory(eventlog.DefaultTopLimit),
		"byScript":    h.logReader.TopByScript(eventlog.DefaultTopLimit),
	})
}

func (h *handlers) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probe.Status())
}

func (h *handlers) handleServerPlayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.probe.PlayerList())
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
