package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/parkview-rp/telemetry/internal/eventlog"
	"github.com/parkview-rp/telemetry/internal/gate"
	"github.com/parkview-rp/telemetry/internal/history"
	"github.com/parkview-rp/telemetry/internal/probe"
	"github.com/parkview-rp/telemetry/internal/store"
)

const testSecret = "push-secret"

type fixture struct {
	router    http.Handler
	stores    *store.Registry
	history   *history.Recorder
	logWriter *eventlog.Writer
	db        *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&eventlog.Event{}))

	f := &fixture{
		stores:    store.NewRegistry(),
		history:   history.NewRecorder(),
		logWriter: eventlog.NewWriter(db, nil),
		db:        db,
	}
	f.router = NewRouter(RouterConfig{
		Gate:                  gate.New(testSecret),
		Stores:                f.stores,
		History:               f.history,
		LogReader:             eventlog.NewReader(db, nil),
		LogWriter:             f.logWriter,
		Probe:                 probe.New("127.0.0.1", "1", 200*time.Millisecond, "Parkview RP", 64),
		DisableRequestLogging: true,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPushPositions_Accepted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret": testSecret,
		"positions": []map[string]any{
			{"id": 1, "name": "Alice", "x": 215.5, "y": -880.0, "z": 30.0},
			{"id": 2, "name": "Bob", "x": 100.0, "y": 200.0, "z": 10.0},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["received"])

	assert.Equal(t, 2, f.stores.Positions.Count())
	assert.Equal(t, 1, f.history.Len(), "accepted position push samples the history recorder")
}

func TestPushPositions_WrongSecret(t *testing.T) {
	f := newFixture(t)
	f.stores.Positions.Replace([]store.Record{{"id": float64(9)}})

	rec := f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret":    "wrong",
		"positions": []map[string]any{{"id": 1}},
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	records, _ := f.stores.Positions.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, float64(9), records[0]["id"], "rejected push must not mutate the store")
	assert.Equal(t, 0, f.history.Len())
}

func TestPushPositions_MissingSecret(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"positions": []map[string]any{{"id": 1}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.stores.Positions.Count())
}

func TestPushPositions_MalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/live/positions",
		bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.stores.Positions.Count())
}

func TestPushPositions_EmptyCollection(t *testing.T) {
	f := newFixture(t)
	f.stores.Positions.Replace([]store.Record{{"id": float64(1)}})

	rec := f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret":    testSecret,
		"positions": []map[string]any{},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	get := f.do(t, http.MethodGet, "/api/live/positions", nil)
	body := decode(t, get)
	assert.Equal(t, float64(0), body["count"])
}

func TestPushCallsAndUnits_Independent(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/live/calls", map[string]any{
		"secret": testSecret,
		"calls":  []map[string]any{{"id": 1, "title": "10-31 in progress"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/live/units", map[string]any{
		"secret": testSecret,
		"units":  []map[string]any{{"id": 1}, {"id": 2}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1, f.stores.Calls.Count())
	assert.Equal(t, 2, f.stores.Units.Count())
	assert.Equal(t, 0, f.history.Len(), "only position pushes feed the history recorder")
}

func TestGetPositions_Metadata(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret":    testSecret,
		"positions": []map[string]any{{"id": 1, "name": "Alice"}},
	})

	rec := f.do(t, http.MethodGet, "/api/live/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Greater(t, body["lastUpdate"], float64(0))
	assert.Len(t, body["positions"], 1)
}

func TestGetPositions_ProjectLatLng(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret":    testSecret,
		"positions": []map[string]any{{"id": 1, "x": 0.0, "y": 0.0}},
	})

	rec := f.do(t, http.MethodGet, "/api/live/positions?project=latlng", nil)
	body := decode(t, rec)
	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	first := positions[0].(map[string]any)
	require.Contains(t, first, "latLng")
}

func TestGetCalls_RouteProjection(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/live/calls", map[string]any{
		"secret": testSecret,
		"calls":  []map[string]any{{"id": 1, "route": "[[0,0],[100,50]]"}},
	})

	rec := f.do(t, http.MethodGet, "/api/live/calls?project=latlng", nil)
	body := decode(t, rec)
	calls := body["calls"].([]any)
	require.Len(t, calls, 1)
	first := calls[0].(map[string]any)
	assert.Contains(t, first["routeWkt"], "LINESTRING")
}

func TestGetHistory_Shape(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/live/positions", map[string]any{
		"secret":    testSecret,
		"positions": []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}},
	})

	rec := f.do(t, http.MethodGet, "/api/live/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["totalEntries"])
	require.Len(t, body["raw"], 1)
	require.Len(t, body["history"], 1)

	bucket := body["history"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(3), bucket["players"])
}

func TestLogIngestAndQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/logs/", map[string]any{
		"secret": testSecret,
		"logs": []map[string]any{
			{"script": "esx_banking", "category": "trade", "message": "withdrew $500", "playerName": "Alice"},
			{"script": "esx_chat", "category": "chat", "message": "hello", "playerName": "Bob"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	f.logWriter.Flush()

	rec = f.do(t, http.MethodGet, "/api/logs/?category=trade", nil)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(50), body["limit"])
	assert.Equal(t, float64(0), body["offset"])
}

func TestLogIngest_WrongSecret(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/logs/", map[string]any{
		"secret": "wrong",
		"logs":   []map[string]any{{"category": "chat"}},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, f.logWriter.Pending())
}

func TestLogStats_Shape(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&eventlog.Event{
		Script: "esx_chat", Category: "chat", CreatedAt: time.Now(),
	}).Error)

	rec := f.do(t, http.MethodGet, "/api/logs/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["totalLogs"])
	assert.Equal(t, float64(1), body["last24Hours"])
	assert.Equal(t, map[string]any{"chat": float64(1)}, body["byCategory"])
	assert.Equal(t, map[string]any{"esx_chat": float64(1)}, body["byScript"])
}

func TestServerStatus_OfflineFallback(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/server/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["online"])
	assert.Equal(t, float64(0), body["players"])
	assert.Equal(t, "Parkview RP", body["serverName"])
}

func TestServerPlayers_OfflineEmpty(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/server/players", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var players []any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &players))
	assert.Empty(t, players)
}

func TestHealthcheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
