package vecora

import (
	"sync/atomic"
	"time"

	"github.com/vecora/vecora/model"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordUpdate is called after each update operation is applied.
	// op is the operation kind, duration is the apply time, err is nil on
	// success.
	RecordUpdate(op string, duration time.Duration, err error)

	// RecordRead is called after each read operation (search, recommend,
	// scroll, retrieve).
	RecordRead(op string, duration time.Duration, err error)

	// RecordOptimization is called after each background optimization task
	// reaches a terminal state. sources is the number of merged segments.
	RecordOptimization(sources int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpdate(string, time.Duration, error)    {}
func (NoopMetricsCollector) RecordRead(string, time.Duration, error)      {}
func (NoopMetricsCollector) RecordOptimization(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	UpdateCount            atomic.Int64
	UpdateErrors           atomic.Int64
	UpdateTotalNanos       atomic.Int64
	ReadCount              atomic.Int64
	ReadErrors             atomic.Int64
	ReadTotalNanos         atomic.Int64
	OptimizationCount      atomic.Int64
	OptimizationErrors     atomic.Int64
	SegmentsMerged         atomic.Int64
	OptimizationTotalNanos atomic.Int64
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(op string, duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	b.UpdateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(op string, duration time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordOptimization implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOptimization(sources int, duration time.Duration, err error) {
	b.OptimizationCount.Add(1)
	b.OptimizationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.OptimizationErrors.Add(1)
		return
	}
	b.SegmentsMerged.Add(int64(sources))
}

// observerAdapter bridges the public MetricsCollector to the internal
// telemetry hooks.
type observerAdapter struct {
	m MetricsCollector
}

func (a observerAdapter) OnUpdate(kind model.OperationKind, duration time.Duration, err error) {
	a.m.RecordUpdate(kind.String(), duration, err)
}

func (a observerAdapter) OnRead(op string, duration time.Duration, err error) {
	a.m.RecordRead(op, duration, err)
}

func (a observerAdapter) OnOptimize(duration time.Duration, sources int, err error) {
	a.m.RecordOptimization(sources, duration, err)
}
