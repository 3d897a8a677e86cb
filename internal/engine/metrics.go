package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// metrics is a process-local bundle of search-throughput instruments. No
// concrete SDK/exporter is configured here (the default global
// MeterProvider is a no-op until something installs one via
// otel.SetMeterProvider), so these calls are always safe and always cheap.
type metrics struct {
	meter             metric.Meter
	nps               metric.Float64Gauge
	hashFull          metric.Int64Gauge
	iterationDuration metric.Float64Histogram
}

func newMetrics() *metrics {
	m := otel.Meter("underflaw-engine")
	nps, _ := m.Float64Gauge("nodes_per_second",
		metric.WithDescription("search throughput in nodes per second"))
	hashFull, _ := m.Int64Gauge("hashfull",
		metric.WithDescription("transposition table occupancy, permille"))
	iterationDuration, _ := m.Float64Histogram("iteration_duration",
		metric.WithDescription("wall-clock time spent per iterative-deepening depth"),
		metric.WithUnit("s"))
	return &metrics{
		meter:             m,
		nps:               nps,
		hashFull:          hashFull,
		iterationDuration: iterationDuration,
	}
}

func (m *metrics) recordIteration(ctx context.Context, nodes uint64, elapsed time.Duration, hashFullPermille int) {
	if elapsed > 0 {
		m.nps.Record(ctx, float64(nodes)/elapsed.Seconds())
	}
	m.hashFull.Record(ctx, int64(hashFullPermille))
	m.iterationDuration.Record(ctx, elapsed.Seconds())
}
