package eventlog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/parkview-rp/telemetry/internal/queue"
	"gorm.io/gorm"
)

// DefaultFlushInterval is how often buffered events are written to the DB.
const DefaultFlushInterval = 5 * time.Second

// Writer buffers incoming log events and writes them to the database in
// batches. Latency on the push path matters more than write immediacy, so
// Record only appends to an in-memory queue.
type Writer struct {
	db       *gorm.DB
	logger   *slog.Logger
	pending  *queue.Queue[Event]
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWriter creates a writer flushing at the default interval.
func NewWriter(db *gorm.DB, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		db:       db,
		logger:   logger,
		pending:  queue.New[Event](),
		interval: DefaultFlushInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Record queues an event for the next batch write. A zero CreatedAt is
// stamped with the current time.
func (w *Writer) Record(e Event) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	w.pending.Push(e)
}

// Pending returns the number of queued, unflushed events.
func (w *Writer) Pending() int {
	return w.pending.Len()
}

// Start launches the background flush loop. Call Stop to drain and halt.
func (w *Writer) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Flush()
			case <-w.stop:
				w.Flush()
				return
			}
		}
	}()
}

// Stop halts the flush loop after a final drain. Safe to call twice.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
	})
}

// Flush writes all queued events in one batch insert. Events that fail to
// write are requeued so a transient DB outage loses nothing.
func (w *Writer) Flush() {
	events := w.pending.GetAndEmpty()
	if len(events) == 0 {
		return
	}

	start := time.Now()
	if err := w.db.CreateInBatches(events, 500).Error; err != nil {
		w.logger.Warn("event log batch write failed, requeueing",
			"count", len(events), "error", err)
		w.pending.Push(events...)
		return
	}
	w.logger.Debug("flushed event log batch",
		"count", len(events), "duration", time.Since(start))
}
