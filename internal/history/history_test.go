package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests drive the recorder's notion of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRecorder(start time.Time) (*Recorder, *fakeClock) {
	r := NewRecorder()
	clk := &fakeClock{t: start}
	r.now = clk.now
	return r, clk
}

func TestSample_FirstIsUnconditional(t *testing.T) {
	r, _ := newTestRecorder(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	r.Sample(12)
	entries := r.Read()
	require.Len(t, entries, 1)
	assert.Equal(t, "09:00", entries[0].Time)
	assert.Equal(t, 12, entries[0].Players)
}

func TestSample_IdempotentWithinInterval(t *testing.T) {
	r, clk := newTestRecorder(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	r.Sample(10)
	for i := 0; i < 10; i++ {
		clk.advance(20 * time.Second)
		r.Sample(10 + i)
	}
	assert.Equal(t, 1, r.Len(), "calls inside the interval must not append")

	clk.advance(5 * time.Minute)
	r.Sample(42)
	entries := r.Read()
	require.Len(t, entries, 2)
	assert.Equal(t, 42, entries[1].Players)
}

func TestSample_PrunesByCount(t *testing.T) {
	r, clk := newTestRecorder(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	r.retention = 48 * time.Hour // keep age pruning out of the way

	for i := 0; i < DefaultMaxEntries+20; i++ {
		r.Sample(i)
		clk.advance(5 * time.Minute)
	}

	entries := r.Read()
	require.Len(t, entries, DefaultMaxEntries)
	// Oldest-first trimming keeps the newest samples.
	assert.Equal(t, 20, entries[0].Players)
	assert.Equal(t, DefaultMaxEntries+19, entries[len(entries)-1].Players)
}

func TestSample_PrunesByAge(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r, clk := newTestRecorder(start)

	r.Sample(5)
	clk.advance(25 * time.Hour)
	r.Sample(7)

	entries := r.Read()
	require.Len(t, entries, 1)
	assert.Equal(t, 7, entries[0].Players)

	cutoff := clk.t.Add(-DefaultRetention).UnixMilli()
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Timestamp, cutoff)
	}
}

func TestSample_TimestampsMonotonic(t *testing.T) {
	r, clk := newTestRecorder(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		r.Sample(i)
		clk.advance(6 * time.Minute)
	}
	entries := r.Read()
	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i].Timestamp, entries[i-1].Timestamp)
	}
}

func TestReadAggregated_Example(t *testing.T) {
	r, clk := newTestRecorder(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	r.interval = time.Minute

	r.Sample(10) // 09:00
	clk.t = time.Date(2026, 3, 1, 9, 3, 0, 0, time.UTC)
	r.Sample(20) // 09:03
	clk.t = time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	r.Sample(30) // 10:01

	buckets := r.ReadAggregated()
	require.Len(t, buckets, 2)
	assert.Equal(t, Bucket{Hour: "09:00", Players: 15}, buckets[0])
	assert.Equal(t, Bucket{Hour: "10:00", Players: 30}, buckets[1])
}

func TestReadAggregated_Empty(t *testing.T) {
	r := NewRecorder()
	assert.Empty(t, r.ReadAggregated())
}

func TestReadAggregated_SingleEntry(t *testing.T) {
	r, _ := newTestRecorder(time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC))
	r.Sample(8)

	buckets := r.ReadAggregated()
	require.Len(t, buckets, 1)
	assert.Equal(t, Bucket{Hour: "14:00", Players: 8}, buckets[0])
}

func TestReadAggregated_RoundsHalfAwayFromZero(t *testing.T) {
	r, clk := newTestRecorder(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	r.interval = time.Minute

	r.Sample(1)
	clk.advance(2 * time.Minute)
	r.Sample(2) // mean 1.5 rounds to 2

	buckets := r.ReadAggregated()
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].Players)
}
