package server

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/parkview-rp/telemetry/internal/history"
	"github.com/parkview-rp/telemetry/internal/store"
)

const instrumentationName = "github.com/parkview-rp/telemetry/internal/server"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics holds the ingest instruments. A nil *metrics is a no-op, so
// handler code never has to branch on registration failure.
type metrics struct {
	pushesAccepted metric.Int64Counter
	pushesRejected metric.Int64Counter
}

// newMetrics registers the ingest counters and the observable gauges for
// store sizes and history length. Uses the global OTel meter, which is a
// no-op unless a meter provider is configured.
func newMetrics(stores *store.Registry, rec *history.Recorder) (*metrics, error) {
	m := meter()
	out := &metrics{}

	var err error
	out.pushesAccepted, err = m.Int64Counter(
		"ingest.pushes.accepted",
		metric.WithDescription("Total accepted telemetry pushes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating accepted counter: %w", err)
	}

	out.pushesRejected, err = m.Int64Counter(
		"ingest.pushes.rejected",
		metric.WithDescription("Total rejected telemetry pushes"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rejected counter: %w", err)
	}

	storeRecords, err := m.Int64ObservableGauge(
		"ingest.store.records",
		metric.WithDescription("Current number of records per live store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating store gauge: %w", err)
	}

	historyEntries, err := m.Int64ObservableGauge(
		"history.entries",
		metric.WithDescription("Current number of buffered history samples"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating history gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(storeRecords, int64(stores.Positions.Count()),
				metric.WithAttributes(attribute.String("store", "positions")))
			o.ObserveInt64(storeRecords, int64(stores.Calls.Count()),
				metric.WithAttributes(attribute.String("store", "calls")))
			o.ObserveInt64(storeRecords, int64(stores.Units.Count()),
				metric.WithAttributes(attribute.String("store", "units")))
			o.ObserveInt64(historyEntries, int64(rec.Len()))
			return nil
		},
		storeRecords, historyEntries,
	)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return out, nil
}

func (m *metrics) accepted(ctx context.Context, storeName string) {
	if m == nil {
		return
	}
	m.pushesAccepted.Add(ctx, 1, metric.WithAttributes(attribute.String("store", storeName)))
}

func (m *metrics) rejected(ctx context.Context, storeName, reason string) {
	if m == nil {
		return
	}
	m.pushesRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", storeName),
		attribute.String("reason", reason),
	))
}
