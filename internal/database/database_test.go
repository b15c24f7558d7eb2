package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkview-rp/telemetry/internal/eventlog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

func TestGetSqliteDB_InMemory(t *testing.T) {
	m := NewManager(testLogger(), "")

	db, err := m.GetSqliteDB("")
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestGetSqliteDB_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	m := NewManager(testLogger(), path)

	db, err := m.GetSqliteDB(path)
	require.NoError(t, err)
	require.NotNil(t, db)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestSetup_MigratesEventLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	m := NewManager(testLogger(), path)

	db, err := m.GetSqliteDB(path)
	require.NoError(t, err)
	m.DB = db

	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&eventlog.Event{}))
}

func TestClose_NilSqlDB(t *testing.T) {
	m := NewManager(testLogger(), "")
	assert.NoError(t, m.Close())
}
