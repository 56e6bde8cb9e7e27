package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
)

const meterName = "paddock"

// Metrics holds the query pipeline instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	Queries       metric.Int64Counter
	QueryFailures metric.Int64Counter
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
	CacheBypasses metric.Int64Counter
	SweepRemoved  metric.Int64Counter
	QueryDuration metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWith(otel.GetMeterProvider())
}

// NewMetricsWith creates the instruments on provider.
func NewMetricsWith(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Queries, err = meter.Int64Counter("paddock.queries",
		metric.WithDescription("Number of queries executed or replayed"))
	if err != nil {
		return nil, err
	}

	m.QueryFailures, err = meter.Int64Counter("paddock.queries.failed",
		metric.WithDescription("Number of queries ending in an error"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("paddock.cache.hits",
		metric.WithDescription("Query cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("paddock.cache.misses",
		metric.WithDescription("Query cache misses"))
	if err != nil {
		return nil, err
	}

	m.CacheBypasses, err = meter.Int64Counter("paddock.cache.bypasses",
		metric.WithDescription("Query cache lookups skipped for debug or refresh"))
	if err != nil {
		return nil, err
	}

	m.SweepRemoved, err = meter.Int64Counter("paddock.cache.sweep.removed",
		metric.WithDescription("Cache entries removed by maintenance, by step"))
	if err != nil {
		return nil, err
	}

	m.QueryDuration, err = meter.Float64Histogram("paddock.query.duration_seconds",
		metric.WithDescription("End-to-end query duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

func kindAttr(kind intent.Kind) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("query.kind", string(kind)))
}

// RecordQuery records one finished query. outcome is "ok" or an error kind.
func (m *Metrics) RecordQuery(ctx context.Context, kind intent.Kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("query.kind", string(kind)),
		attribute.String("query.outcome", outcome),
	)
	m.Queries.Add(ctx, 1, attrs)
	if outcome != "ok" {
		m.QueryFailures.Add(ctx, 1, attrs)
	}
	m.QueryDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) CacheHit(ctx context.Context, kind intent.Kind) {
	if m != nil {
		m.CacheHits.Add(ctx, 1, kindAttr(kind))
	}
}

func (m *Metrics) CacheMiss(ctx context.Context, kind intent.Kind) {
	if m != nil {
		m.CacheMisses.Add(ctx, 1, kindAttr(kind))
	}
}

func (m *Metrics) CacheBypass(ctx context.Context, kind intent.Kind) {
	if m != nil {
		m.CacheBypasses.Add(ctx, 1, kindAttr(kind))
	}
}

// RecordSweep adds the per-step removal counts of a maintenance report.
func (m *Metrics) RecordSweep(ctx context.Context, r querycache.MaintenanceReport) {
	if m == nil {
		return
	}
	for step, n := range map[string]int64{
		"stale_version": r.StaleVersionsRemoved,
		"expired":       r.ExpiredPurged,
		"lru":           r.LRUEvicted,
	} {
		if n > 0 {
			m.SweepRemoved.Add(ctx, n, metric.WithAttributes(attribute.String("sweep.step", step)))
		}
	}
}
