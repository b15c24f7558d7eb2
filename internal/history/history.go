// Package history records a rolling window of player-count samples and
// exposes hour-bucketed averages for the community dashboard.
package history

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Defaults match one sample every 5 minutes over a 24 hour window.
const (
	DefaultSampleInterval = 5 * time.Minute
	DefaultMaxEntries     = 288
	DefaultRetention      = 24 * time.Hour
)

// Entry is one recorded player-count sample.
type Entry struct {
	Time      string `json:"time"`      // wall-clock label, HH:MM 24h
	Players   int    `json:"players"`   // player count at sample time
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// Bucket is an hour-aligned average of samples, computed on read.
type Bucket struct {
	Hour    string `json:"hour"` // HH:00
	Players int    `json:"players"`
}

// Recorder keeps a bounded, age-pruned buffer of samples. Sampling is
// caller-driven: the interval guarantee is best-effort and depends on how
// often Sample is invoked.
type Recorder struct {
	mu       sync.RWMutex
	entries  []Entry
	lastTrig time.Time

	interval   time.Duration
	maxEntries int
	retention  time.Duration
	now        func() time.Time
}

// NewRecorder creates a recorder with the default interval and bounds.
func NewRecorder() *Recorder {
	return NewRecorderWith(DefaultSampleInterval, DefaultMaxEntries, DefaultRetention)
}

// NewRecorderWith creates a recorder with explicit interval and bounds.
func NewRecorderWith(interval time.Duration, maxEntries int, retention time.Duration) *Recorder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Recorder{
		entries:    []Entry{},
		interval:   interval,
		maxEntries: maxEntries,
		retention:  retention,
		now:        time.Now,
	}
}

// Sample records the supplied player count if the sampling interval has
// elapsed since the last recorded sample. The very first sample is always
// recorded. Calls inside the interval are no-ops, which makes Sample safe
// to invoke from high-frequency request handlers.
func (r *Recorder) Sample(players int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.lastTrig.IsZero() && now.Sub(r.lastTrig) < r.interval {
		return
	}
	r.lastTrig = now

	r.entries = append(r.entries, Entry{
		Time:      now.Format("15:04"),
		Players:   players,
		Timestamp: now.UnixMilli(),
	})
	r.prune(now)
}

// prune drops aged-out entries first, then trims oldest-first to the
// maximum length. Caller must hold the write lock.
func (r *Recorder) prune(now time.Time) {
	cutoff := now.Add(-r.retention).UnixMilli()
	i := 0
	for i < len(r.entries) && r.entries[i].Timestamp < cutoff {
		i++
	}
	if i > 0 {
		r.entries = append([]Entry{}, r.entries[i:]...)
	}
	if n := len(r.entries); n > r.maxEntries {
		r.entries = append([]Entry{}, r.entries[n-r.maxEntries:]...)
	}
}

// Read returns the buffered samples, oldest first.
func (r *Recorder) Read() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of buffered samples.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ReadAggregated groups the buffered samples by the hour portion of their
// time label and averages the player counts within each hour. Averages
// round half away from zero (math.Round). Buckets come back sorted by hour
// label, which is chronological for zero-padded 24h labels.
func (r *Recorder) ReadAggregated() []Bucket {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, e := range r.entries {
		hour := e.Time[:2] + ":00"
		sums[hour] += e.Players
		counts[hour]++
	}

	buckets := make([]Bucket, 0, len(sums))
	for hour, sum := range sums {
		avg := int(math.Round(float64(sum) / float64(counts[hour])))
		buckets = append(buckets, Bucket{Hour: hour, Players: avg})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Hour < buckets[j].Hour
	})
	return buckets
}
