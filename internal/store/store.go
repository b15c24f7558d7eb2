// Package store holds the ephemeral live-telemetry snapshots pushed by the
// game server. Each store keeps only the latest full collection, replaced
// wholesale on every push; contents are lost on process restart.
package store

import (
	"sync"
	"time"
)

// Record is one opaque telemetry record. The producer's shape is not
// validated here; consumers read whatever keys the game server sent.
type Record map[string]any

// Meta describes the freshness of a snapshot.
type Meta struct {
	LastUpdate time.Time `json:"lastUpdate"`
	Count      int       `json:"count"`
}

// Store is a mutex-guarded register holding the latest pushed collection.
// Writers replace, readers snapshot; neither ever observes a partial swap.
type Store struct {
	mu         sync.RWMutex
	records    []Record
	lastUpdate time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{records: []Record{}}
}

// Replace atomically swaps the held collection for the supplied one.
// A nil collection is stored as empty; Replace never fails on data shape.
func (s *Store) Replace(records []Record) {
	if records == nil {
		records = []Record{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.lastUpdate = time.Now()
}

// Snapshot returns the current collection and its freshness metadata.
// The returned slice is a copy; callers may not mutate stored records
// through it without racing the producer.
func (s *Store) Snapshot() ([]Record, Meta) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, Meta{LastUpdate: s.lastUpdate, Count: len(out)}
}

// Count returns the cardinality of the current collection.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Registry groups the three live stores. Each store has its own lock;
// a position push never serializes behind a dispatch read.
type Registry struct {
	Positions *Store
	Calls     *Store
	Units     *Store
}

// NewRegistry creates the registry with all stores empty.
func NewRegistry() *Registry {
	return &Registry{
		Positions: New(),
		Calls:     New(),
		Units:     New(),
	}
}
