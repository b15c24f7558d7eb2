// Package eventlog aggregates the structured log events the game server
// writes into the community database. Reads are advisory: any backing
// store failure degrades to zeroed results instead of erroring.
package eventlog

import (
	"time"

	"gorm.io/datatypes"
)

// Event is one structured log event in the server_logs table.
type Event struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	Script     string         `gorm:"index" json:"script"`
	Category   string         `gorm:"index" json:"category"`
	Identifier string         `gorm:"index" json:"identifier"`
	Message    string         `json:"message"`
	Title      string         `json:"title"`
	PlayerName string         `json:"playerName"`
	Details    datatypes.JSON `json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
}

// TableName maps Event onto the community schema's log table.
func (Event) TableName() string {
	return "server_logs"
}

// Totals holds the rolling event counters shown on the dashboard.
type Totals struct {
	TotalLogs   int64 `json:"totalLogs"`
	Last24Hours int64 `json:"last24Hours"`
}

// Filter selects events for Query. Zero-valued fields are ignored; the
// non-empty ones are combined with AND. Search matches as a substring
// against message, title and playerName (OR across the three).
type Filter struct {
	Script     string
	Category   string
	Identifier string
	Search     string
	Limit      int
	Offset     int
}

// DefaultQueryLimit caps Query pages when the caller does not set one.
const DefaultQueryLimit = 50

// DefaultTopLimit caps the top-N category/script breakdowns.
const DefaultTopLimit = 10
