// Package collection implements the mutable storage core of a vector
// collection: a refcounted registry of live segments, an update handler
// routing writes across them, a background optimizer merging them, and a
// reader fanning queries out over consistent snapshots.
package collection

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/internal/resource"
	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
	"github.com/vecora/vecora/segment/memory"
)

// Config configures a collection core.
type Config struct {
	// Dim is the fixed vector dimension. Required.
	Dim int

	// Metric is the similarity metric shared by all segments.
	Metric distance.Metric

	// AppendableSegments is the number of appendable segments created at
	// startup. If 0, defaults to 2.
	AppendableSegments int

	// QueueSize bounds the acknowledged-update queue. If 0, defaults to 64.
	QueueSize int

	// Policies drive background optimization. If nil, a default rollover
	// plus merge stack is installed.
	Policies []OptimizerPolicy

	// Resources bounds background concurrency and merge throughput.
	Resources resource.Config

	// SegmentFactory produces segments for bootstrap and merge output.
	// If nil, in-memory segments are used.
	SegmentFactory SegmentFactory

	// Logger receives operational logs. If nil, slog.Default is used.
	Logger *slog.Logger

	// Observer receives telemetry. If nil, a no-op observer is used.
	Observer Observer
}

// Core ties the holder, updater, optimizer and reader of one collection
// together and owns their lifecycles.
type Core struct {
	cfg       Config
	holder    *Holder
	optimizer *Optimizer
	updater   *Updater
	reader    *Reader

	clock  atomic.Uint64
	closed atomic.Bool
}

// New creates and starts a collection core.
func New(cfg Config) (*Core, error) {
	if cfg.Dim <= 0 {
		return nil, ErrInvalidArgument
	}
	if cfg.AppendableSegments <= 0 {
		cfg.AppendableSegments = 2
	}
	if cfg.SegmentFactory == nil {
		cfg.SegmentFactory = func(dim int, metric distance.Metric) (segment.Segment, error) {
			return memory.New(dim, metric)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = NoopObserver{}
	}
	if cfg.Policies == nil {
		cfg.Policies = []OptimizerPolicy{
			&RolloverPolicy{},
			&MergeSmallPolicy{},
			&MergeOldestPolicy{},
		}
	}

	c := &Core{cfg: cfg, holder: NewHolder()}

	for i := 0; i < cfg.AppendableSegments; i++ {
		seg, err := cfg.SegmentFactory(cfg.Dim, cfg.Metric)
		if err != nil {
			c.holder.Close()
			return nil, err
		}
		c.holder.Add(seg, true)
	}

	res := resource.NewController(cfg.Resources)
	c.optimizer = NewOptimizer(c.holder, cfg.Policies, cfg.SegmentFactory, res, cfg.Logger, cfg.Observer)
	c.updater = NewUpdater(c.holder, c.optimizer, cfg.SegmentFactory, cfg.Dim, cfg.Metric, &c.clock, cfg.QueueSize, cfg.Logger, cfg.Observer)
	c.reader = NewReader(c.holder, cfg.Dim, cfg.Logger, cfg.Observer)

	c.optimizer.Start()
	c.updater.Start()
	return c, nil
}

// Apply applies one update operation. See Updater.Apply for wait semantics.
func (c *Core) Apply(ctx context.Context, op model.UpdateOperation, wait bool) (model.UpdateResult, error) {
	if c.closed.Load() {
		return model.UpdateResult{}, ErrClosed
	}
	return c.updater.Apply(ctx, op, wait)
}

// Search runs a k-NN query across all segments.
func (c *Core) Search(ctx context.Context, req model.SearchRequest) ([]model.ScoredPoint, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.reader.Search(ctx, req)
}

// Recommend searches by stored exemplars.
func (c *Core) Recommend(ctx context.Context, req model.RecommendRequest) ([]model.ScoredPoint, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.reader.Recommend(ctx, req)
}

// Scroll returns one page of live points in ascending id order.
func (c *Core) Scroll(ctx context.Context, req model.ScrollRequest) (model.ScrollResult, error) {
	if c.closed.Load() {
		return model.ScrollResult{}, ErrClosed
	}
	return c.reader.Scroll(ctx, req)
}

// Retrieve fetches points by id.
func (c *Core) Retrieve(ctx context.Context, ids []model.PointID, withPayload, withVector bool) ([]model.Record, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	return c.reader.Retrieve(ctx, ids, withPayload, withVector)
}

// Optimize triggers a full optimization pass and waits for it to settle.
func (c *Core) Optimize(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.optimizer.RunOnce(ctx)
}

// SegmentCount returns the number of live segments.
func (c *Core) SegmentCount() int {
	return c.holder.Len()
}

// Count returns the number of live points across all segments.
// Transient duplicates during a routed upsert may be counted twice.
func (c *Core) Count() int {
	snap := c.holder.Snapshot()
	defer snap.Release()
	total := 0
	for _, e := range snap.Entries() {
		total += e.Segment().Count()
	}
	return total
}

// Close drains acknowledged updates, stops background optimization and
// releases every segment. Reads borrowed before Close stay valid until
// their snapshots are released.
func (c *Core) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.updater.Close()
	c.optimizer.Close()
	c.holder.Close()
	return nil
}
