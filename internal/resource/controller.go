// Package resource bounds the background work a collection may run
// concurrently and throttles merge throughput.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundWorkers is the maximum number of concurrent background
	// jobs (optimization builds). If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// MergePointsPerSec is the maximum rate at which a merge build may
	// copy points. If 0, unlimited.
	MergePointsPerSec int
}

// Controller manages background concurrency and merge throughput.
type Controller struct {
	cfg Config

	bgSem *semaphore.Weighted

	mergeLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MergePointsPerSec > 0 {
		c.mergeLimiter = rate.NewLimiter(rate.Limit(cfg.MergePointsPerSec), cfg.MergePointsPerSec)
	}

	return c
}

// TryAcquireBackground attempts to reserve a background worker slot.
// Non-blocking; returns false when all slots are busy.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}

// AcquireBackground blocks until a background worker slot is available or
// the context is cancelled.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// ThrottleMerge blocks until n points worth of merge budget is available.
func (c *Controller) ThrottleMerge(ctx context.Context, n int) error {
	if c == nil || c.mergeLimiter == nil || n <= 0 {
		return nil
	}
	// WaitN caps n at the limiter burst; split large batches.
	burst := c.mergeLimiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.mergeLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// MaxBackgroundWorkers returns the configured worker bound.
func (c *Controller) MaxBackgroundWorkers() int64 {
	if c == nil {
		return 1
	}
	return c.cfg.MaxBackgroundWorkers
}
