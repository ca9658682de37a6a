package collection

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/internal/resource"
	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
)

// SegmentFactory produces an empty segment for merge output or appendable
// bootstrap.
type SegmentFactory func(dim int, metric distance.Metric) (segment.Segment, error)

// taskState tracks the lifecycle of one optimization task.
type taskState int

const (
	taskSelected taskState = iota
	taskBuilding
	taskSwapped
	taskFailed
)

func (s taskState) String() string {
	switch s {
	case taskSelected:
		return "selected"
	case taskBuilding:
		return "building"
	case taskSwapped:
		return "swapped"
	case taskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Optimizer merges segments in the background without stalling reads or
// writes. Candidate selection is delegated to the configured policies; the
// optimizer enforces that no two in-flight tasks share a source segment
// via a reservation registry, checked-and-marked atomically before a task
// starts.
//
// A failed task releases its reservations, leaves the source segments
// untouched and stays eligible for retry on the next cycle. Failures are
// never fatal to the collection.
type Optimizer struct {
	holder   *Holder
	policies []OptimizerPolicy
	factory  SegmentFactory
	res      *resource.Controller
	logger   *slog.Logger
	obs      Observer

	reservedMu sync.Mutex
	reserved   map[model.SegmentID]struct{}

	trigger chan struct{}
	closeCh chan struct{}
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewOptimizer creates an optimizer over the holder. Start must be called
// to launch the background loop.
func NewOptimizer(holder *Holder, policies []OptimizerPolicy, factory SegmentFactory, res *resource.Controller, logger *slog.Logger, obs Observer) *Optimizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Optimizer{
		holder:   holder,
		policies: policies,
		factory:  factory,
		res:      res,
		logger:   logger,
		obs:      obs,
		reserved: make(map[model.SegmentID]struct{}),
		trigger:  make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the background optimization loop.
func (o *Optimizer) Start() {
	o.wg.Add(1)
	go o.runLoop()
}

// Trigger requests an optimization check. Non-blocking: a pending trigger
// while one is already queued is a no-op, not queue growth.
func (o *Optimizer) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

// Close abandons in-flight builds and stops the loop. Partially built
// segments are never swapped in.
func (o *Optimizer) Close() {
	o.cancel()
	close(o.closeCh)
	o.wg.Wait()
}

func (o *Optimizer) runLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.closeCh:
			return
		case <-o.trigger:
			if err := o.RunOnce(o.ctx); err != nil {
				o.logger.Error("optimization cycle aborted", "error", err)
			}
		}
	}
}

// RunOnce selects and executes optimization tasks until the policies find
// nothing more to do or no task makes progress. Task failures are logged
// and reported to the observer, never returned; the only returned errors
// are context cancellation.
func (o *Optimizer) RunOnce(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tasks := o.selectTasks()
		if len(tasks) == 0 {
			return nil
		}

		var (
			mu       sync.Mutex
			progress bool
		)
		g, gctx := errgroup.WithContext(ctx)
		for _, task := range tasks {
			task := task
			g.Go(func() error {
				if err := o.res.AcquireBackground(gctx); err != nil {
					o.release(task.Sources)
					return err
				}
				defer o.res.ReleaseBackground()

				if err := o.run(gctx, task); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					return nil // logged in run, retried next cycle
				}
				mu.Lock()
				progress = true
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if !progress {
			return nil
		}
	}
}

// selectTasks asks every policy for candidates and reserves their sources.
// Tasks overlapping an in-flight reservation are dropped; they will be
// reconsidered once the running task releases its segments.
func (o *Optimizer) selectTasks() []OptimizationTask {
	snap := o.holder.Snapshot()
	defer snap.Release()

	infos := make([]SegmentInfo, 0, len(snap.Entries()))
	o.reservedMu.Lock()
	for _, e := range snap.Entries() {
		if _, busy := o.reserved[e.ID()]; busy {
			continue
		}
		infos = append(infos, SegmentInfo{
			ID:         e.ID(),
			Points:     e.Segment().Count(),
			Appendable: e.Appendable(),
		})
	}
	o.reservedMu.Unlock()

	var accepted []OptimizationTask
	for _, policy := range o.policies {
		for _, task := range policy.Pick(infos) {
			if len(task.Sources) == 0 {
				continue
			}
			if o.tryReserve(task.Sources) {
				accepted = append(accepted, task)
			}
		}
	}
	return accepted
}

func (o *Optimizer) tryReserve(sources []model.SegmentID) bool {
	o.reservedMu.Lock()
	defer o.reservedMu.Unlock()
	for _, id := range sources {
		if _, busy := o.reserved[id]; busy {
			return false
		}
	}
	for _, id := range sources {
		o.reserved[id] = struct{}{}
	}
	return true
}

func (o *Optimizer) release(sources []model.SegmentID) {
	o.reservedMu.Lock()
	defer o.reservedMu.Unlock()
	for _, id := range sources {
		delete(o.reserved, id)
	}
}

// run executes one task through Selected -> Building -> (Swapped | Failed).
// The merge build runs against private scratch state; only the final swap
// takes the holder's exclusive lock.
func (o *Optimizer) run(ctx context.Context, task OptimizationTask) (err error) {
	start := time.Now()
	state := taskSelected
	defer func() {
		o.release(task.Sources)
		o.obs.OnOptimize(time.Since(start), len(task.Sources), err)
		if err != nil {
			o.logger.Error("optimization task failed",
				"state", state.String(), "sources", task.Sources, "error", err)
		}
	}()

	snap := o.holder.Snapshot()
	defer snap.Release()

	byID := make(map[model.SegmentID]*Entry, len(snap.Entries()))
	for _, e := range snap.Entries() {
		byID[e.ID()] = e
	}
	sources := make([]*Entry, 0, len(task.Sources))
	for _, id := range task.Sources {
		e, ok := byID[id]
		if !ok {
			state = taskFailed
			return fmt.Errorf("source segment %d not in snapshot", id)
		}
		sources = append(sources, e)
	}
	// Ascending source id keeps the duplicate-resolution rule deterministic.
	sortEntriesByID(sources)

	state = taskBuilding

	first := sources[0].Segment()
	merged, err := o.factory(first.Dim(), first.Metric())
	if err != nil {
		state = taskFailed
		return fmt.Errorf("create scratch segment: %w", err)
	}

	// Build horizon: writes beyond these versions raced the build and are
	// reconciled inside the swap's exclusive section.
	horizon := make(map[model.SegmentID]uint64, len(sources))
	for _, e := range sources {
		horizon[e.ID()] = e.Segment().MaxVersion()
	}

	for _, e := range sources {
		seg := e.Segment()
		if err := o.res.ThrottleMerge(ctx, seg.Count()); err != nil {
			state = taskFailed
			return err
		}
		var copyErr error
		seg.Iterate(0, func(entry segment.Entry) bool {
			if ctx.Err() != nil {
				copyErr = ctx.Err()
				return false
			}
			// Duplicate ids across sources: highest write version wins,
			// ties go to the later (higher-id) source.
			if existing, ok := merged.Get(entry.ID); ok && existing.Version > entry.Version {
				return true
			}
			copyErr = merged.Upsert(entry.ID, entry.Vector, entry.Payload, entry.Version)
			return copyErr == nil
		})
		if copyErr != nil {
			state = taskFailed
			return fmt.Errorf("merge build: %w", copyErr)
		}
	}

	reconcile := func() error {
		for _, e := range sources {
			seg := e.Segment()
			for _, ch := range seg.ChangedSince(horizon[e.ID()]) {
				existing, ok := merged.Get(ch.ID)
				if ch.Deleted {
					if ok && existing.Version < ch.Version {
						if err := merged.Delete(ch.ID, ch.Version); err != nil {
							return err
						}
					}
					continue
				}
				entry, live := seg.Get(ch.ID)
				if !live {
					continue
				}
				if !ok || existing.Version <= entry.Version {
					if err := merged.Upsert(entry.ID, entry.Vector, entry.Payload, entry.Version); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	newID, err := o.holder.Swap(merged, false, task.Sources, reconcile)
	if err != nil {
		state = taskFailed
		_ = merged.Close()
		return fmt.Errorf("swap: %w", err)
	}

	state = taskSwapped
	o.logger.Info("optimization task swapped",
		"segment", newID, "sources", task.Sources, "points", merged.Count(),
		"took", time.Since(start))
	return nil
}

func sortEntriesByID(entries []*Entry) {
	slices.SortFunc(entries, func(a, b *Entry) int {
		return cmp.Compare(a.ID(), b.ID())
	})
}
