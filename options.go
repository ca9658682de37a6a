package vecora

import (
	"log/slog"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/internal/collection"
	"github.com/vecora/vecora/internal/resource"
	"github.com/vecora/vecora/segment"
)

// SegmentFactory produces an empty segment for appendable bootstrap and
// merge output. The default factory creates in-memory flat segments.
type SegmentFactory func(dim int, metric distance.Metric) (segment.Segment, error)

type options struct {
	appendableSegments int
	queueSize          int
	segmentMaxPoints   int
	maxSegments        int
	maxWorkers         int64
	mergePointsPerSec  int
	logger             *slog.Logger
	metricsCollector   MetricsCollector
	segmentFactory     SegmentFactory
}

// Option configures a collection at construction time.
type Option func(*options)

// WithLogger configures structured logging. If nil, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsCollector configures operational metrics collection.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metricsCollector = m
	}
}

// WithAppendableSegments configures how many appendable segments are
// created at startup. More appendable segments spread concurrent upserts
// over independent write locks. Defaults to 2.
func WithAppendableSegments(n int) Option {
	return func(o *options) {
		o.appendableSegments = n
	}
}

// WithUpdateQueueSize bounds the queue of acknowledged (wait=false)
// updates. A full queue applies backpressure to Apply. Defaults to 64.
func WithUpdateQueueSize(n int) Option {
	return func(o *options) {
		o.queueSize = n
	}
}

// WithSegmentMaxPoints configures the point count at which an appendable
// segment is sealed into a read-only one, and below which read-only
// segments are considered for merging. Defaults to 10000.
func WithSegmentMaxPoints(n int) Option {
	return func(o *options) {
		o.segmentMaxPoints = n
	}
}

// WithMaxSegments bounds the total number of read-only segments; beyond
// it the oldest segments are merged together. Defaults to 8.
func WithMaxSegments(n int) Option {
	return func(o *options) {
		o.maxSegments = n
	}
}

// WithMaxOptimizationWorkers bounds how many optimization tasks build
// concurrently. Defaults to 1.
func WithMaxOptimizationWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = int64(n)
	}
}

// WithMergeRateLimit throttles merge builds to at most n points per
// second, trading optimization latency for steadier foreground
// throughput. 0 disables throttling (the default).
func WithMergeRateLimit(n int) Option {
	return func(o *options) {
		o.mergePointsPerSec = n
	}
}

// WithSegmentFactory configures how segments are created. Use this to
// plug in a custom segment implementation, e.g. an indexed or
// disk-resident one.
func WithSegmentFactory(f SegmentFactory) Option {
	return func(o *options) {
		o.segmentFactory = f
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

func (o options) coreConfig(dim int, metric distance.Metric) collection.Config {
	cfg := collection.Config{
		Dim:                dim,
		Metric:             metric,
		AppendableSegments: o.appendableSegments,
		QueueSize:          o.queueSize,
		Policies: []collection.OptimizerPolicy{
			&collection.RolloverPolicy{MaxPoints: o.segmentMaxPoints},
			&collection.MergeSmallPolicy{MaxPoints: o.segmentMaxPoints},
			&collection.MergeOldestPolicy{MaxSegments: o.maxSegments},
		},
		Resources: resource.Config{
			MaxBackgroundWorkers: o.maxWorkers,
			MergePointsPerSec:    o.mergePointsPerSec,
		},
		Logger:   o.logger,
		Observer: observerAdapter{m: o.metricsCollector},
	}
	if o.segmentFactory != nil {
		cfg.SegmentFactory = collection.SegmentFactory(o.segmentFactory)
	}
	return cfg
}
