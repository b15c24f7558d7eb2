package eventlog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

// aggregateTTL bounds how stale the cached dashboard aggregates may get.
// This trades a little freshness for not re-running group counts on every
// page load; it is a cost optimization, not a correctness requirement.
const aggregateTTL = 30 * time.Second

type cachedCounts struct {
	counts map[string]int64
	at     time.Time
}

// Reader computes rolling counters and top-N breakdowns over the event log.
type Reader struct {
	db     *gorm.DB
	logger *slog.Logger

	mu       sync.Mutex
	totals   Totals
	totalsAt time.Time
	topCache map[string]cachedCounts // keyed by "category:10" etc.
	now      func() time.Time
}

// NewReader creates a reader over the given database.
func NewReader(db *gorm.DB, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		db:       db,
		logger:   logger,
		topCache: make(map[string]cachedCounts),
		now:      time.Now,
	}
}

// Totals returns the total event count and the count of events created in
// the last 24 hours. On any lookup failure it returns zeroed totals.
func (r *Reader) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.totalsAt.IsZero() && now.Sub(r.totalsAt) < aggregateTTL {
		return r.totals
	}

	var t Totals
	if err := r.db.Model(&Event{}).Count(&t.TotalLogs).Error; err != nil {
		r.logger.Warn("event log totals query failed", "error", err)
		return Totals{}
	}
	cutoff := now.Add(-24 * time.Hour)
	if err := r.db.Model(&Event{}).Where("created_at >= ?", cutoff).Count(&t.Last24Hours).Error; err != nil {
		r.logger.Warn("event log 24h count query failed", "error", err)
		return Totals{}
	}

	r.totals = t
	r.totalsAt = now
	return t
}

// TopByCategory returns the most frequent categories with their counts,
// descending by count, at most limit entries. Ties break on category name
// ascending. Empty map on failure.
func (r *Reader) TopByCategory(limit int) map[string]int64 {
	return r.topBy("category", limit)
}

// TopByScript returns the most frequent originating scripts, same contract
// as TopByCategory.
func (r *Reader) TopByScript(limit int) map[string]int64 {
	return r.topBy("script", limit)
}

func (r *Reader) topBy(column string, limit int) map[string]int64 {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	key := fmt.Sprintf("%s:%d", column, limit)
	if c, ok := r.topCache[key]; ok && now.Sub(c.at) < aggregateTTL {
		return c.counts
	}

	type row struct {
		Name  string
		Total int64
	}
	var rows []row
	err := r.db.Model(&Event{}).
		Select(column + " AS name, COUNT(*) AS total").
		Group(column).
		Order("total DESC, name ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		r.logger.Warn("event log breakdown query failed", "column", column, "error", err)
		return map[string]int64{}
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Total
	}
	r.topCache[key] = cachedCounts{counts: counts, at: now}
	return counts
}

// Query returns the filtered page of events plus the full filtered count.
// On failure it returns an empty page and zero total.
func (r *Reader) Query(f Filter) ([]Event, int64) {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := r.db.Model(&Event{})
	if f.Script != "" {
		q = q.Where("script = ?", f.Script)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Identifier != "" {
		q = q.Where("identifier = ?", f.Identifier)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where(
			r.db.Where("LOWER(message) LIKE ?", pattern).
				Or("LOWER(title) LIKE ?", pattern).
				Or("LOWER(player_name) LIKE ?", pattern),
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		r.logger.Warn("event log count query failed", "error", err)
		return []Event{}, 0
	}

	var events []Event
	err := q.Order("created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&events).Error
	if err != nil {
		r.logger.Warn("event log page query failed", "error", err)
		return []Event{}, 0
	}
	return events, total
}
