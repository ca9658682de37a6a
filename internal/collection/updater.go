package collection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/model"
)

// errNeedBootstrap signals that routing found no appendable segment and a
// fresh one should be added before retrying.
var errNeedBootstrap = errors.New("appendable segment bootstrap required")

// Updater applies update operations to the live collection.
//
// Operations are fanned out to all relevant segments; distinct segments
// mutate independently and concurrently. Per-segment failures are
// aggregated: if any targeted segment hard-fails, the whole operation is
// reported as failed even though already-mutated segments keep their
// partial mutation (the external operation log makes re-application safe).
//
// With wait=false, operations are dispatched to a bounded queue consumed
// by a background worker and acknowledged immediately. With wait=true, the
// operation is applied synchronously and pending optimization is drained
// before returning.
type Updater struct {
	holder    *Holder
	optimizer *Optimizer
	factory   SegmentFactory
	dim       int
	metric    distance.Metric
	clock     *atomic.Uint64
	logger    *slog.Logger
	obs       Observer

	rr atomic.Uint64

	queue   chan model.UpdateOperation
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewUpdater creates an update handler. Start must be called to launch the
// background worker consuming acknowledged operations.
func NewUpdater(holder *Holder, optimizer *Optimizer, factory SegmentFactory, dim int, metric distance.Metric, clock *atomic.Uint64, queueSize int, logger *slog.Logger, obs Observer) *Updater {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Updater{
		holder:    holder,
		optimizer: optimizer,
		factory:   factory,
		dim:       dim,
		metric:    metric,
		clock:     clock,
		logger:    logger,
		obs:       obs,
		queue:     make(chan model.UpdateOperation, queueSize),
		closeCh:   make(chan struct{}),
	}
}

// Start launches the background apply worker.
func (u *Updater) Start() {
	u.wg.Add(1)
	go u.runWorker()
}

// Close stops accepting operations, drains the queue and waits for the
// worker to finish.
func (u *Updater) Close() {
	close(u.closeCh)
	u.wg.Wait()
}

// Apply applies one operation to the collection.
//
// wait=true applies synchronously, triggers optimization and waits for it
// to settle; the result status is Completed. wait=false dispatches to the
// worker queue and returns Acknowledged: the write is not yet guaranteed
// visible to subsequent reads.
func (u *Updater) Apply(ctx context.Context, op model.UpdateOperation, wait bool) (model.UpdateResult, error) {
	if err := u.validate(op); err != nil {
		return model.UpdateResult{}, err
	}

	if !wait {
		select {
		case u.queue <- op:
			return model.UpdateResult{Status: model.StatusAcknowledged}, nil
		case <-u.closeCh:
			return model.UpdateResult{}, ErrClosed
		case <-ctx.Done():
			return model.UpdateResult{}, ctx.Err()
		}
	}

	start := time.Now()
	err := u.apply(ctx, op)
	u.obs.OnUpdate(op.Kind, time.Since(start), err)
	if err != nil {
		return model.UpdateResult{}, err
	}

	u.optimizer.Trigger()
	if err := u.optimizer.RunOnce(ctx); err != nil {
		return model.UpdateResult{}, err
	}
	return model.UpdateResult{Status: model.StatusCompleted}, nil
}

func (u *Updater) runWorker() {
	defer u.wg.Done()
	for {
		select {
		case op := <-u.queue:
			u.applyAcknowledged(op)
		case <-u.closeCh:
			// Drain acknowledged operations before shutting down.
			for {
				select {
				case op := <-u.queue:
					u.applyAcknowledged(op)
				default:
					return
				}
			}
		}
	}
}

func (u *Updater) applyAcknowledged(op model.UpdateOperation) {
	start := time.Now()
	err := u.apply(context.Background(), op)
	u.obs.OnUpdate(op.Kind, time.Since(start), err)
	if err != nil {
		// Recovery is the operation log's replay; nothing to undo here.
		u.logger.Error("acknowledged update failed", "op", op.Kind.String(), "error", err)
	}
	u.optimizer.Trigger()
}

func (u *Updater) validate(op model.UpdateOperation) error {
	switch op.Kind {
	case model.OpUpsertPoints:
		if len(op.Points) == 0 {
			return ErrInvalidArgument
		}
		for _, p := range op.Points {
			if len(p.Vector) != u.dim {
				return &DimensionMismatchError{Expected: u.dim, Actual: len(p.Vector)}
			}
		}
	case model.OpDeletePoints, model.OpClearPayload:
		if len(op.IDs) == 0 {
			return ErrInvalidArgument
		}
	case model.OpSetPayload:
		if len(op.IDs) == 0 || len(op.Payload) == 0 {
			return ErrInvalidArgument
		}
	case model.OpDeletePointsByFilter:
		if op.Filter == nil {
			return ErrInvalidArgument
		}
	default:
		return ErrInvalidArgument
	}
	return nil
}

// apply routes one operation. The holder's shared lock is held for the
// duration of the fan-out so that an optimizer swap cannot interleave with
// per-segment application.
func (u *Updater) apply(ctx context.Context, op model.UpdateOperation) error {
	version := u.clock.Add(1)

	switch op.Kind {
	case model.OpUpsertPoints:
		return u.applyUpsert(ctx, op.Points, version)
	case model.OpDeletePoints:
		return u.broadcast(ctx, op.Kind, func(e *Entry) error {
			for _, id := range op.IDs {
				if err := e.Segment().Delete(id, version); err != nil {
					return err
				}
			}
			return nil
		})
	case model.OpDeletePointsByFilter:
		return u.broadcast(ctx, op.Kind, func(e *Entry) error {
			_, err := e.Segment().DeleteByFilter(op.Filter, version)
			return err
		})
	case model.OpSetPayload:
		return u.broadcast(ctx, op.Kind, func(e *Entry) error {
			for _, id := range op.IDs {
				// Segments not holding the id no-op; residency is unknown
				// without an id index, and that is deliberate.
				if _, err := e.Segment().SetPayload(id, op.Payload, version); err != nil {
					return err
				}
			}
			return nil
		})
	case model.OpClearPayload:
		return u.broadcast(ctx, op.Kind, func(e *Entry) error {
			for _, id := range op.IDs {
				if _, err := e.Segment().ClearPayload(id, version); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return ErrInvalidArgument
	}
}

// applyUpsert routes each point round-robin to an appendable segment and
// broadcasts a versioned delete of its id to every other segment, keeping
// at most one live copy per id without an id index. When no appendable
// segment exists, one is bootstrapped and routing retried once.
func (u *Updater) applyUpsert(ctx context.Context, points []model.Point, version uint64) error {
	for attempt := 0; attempt < 2; attempt++ {
		err := u.holder.View(func(entries []*Entry) error {
			var appendable []*Entry
			for _, e := range entries {
				if e.Appendable() {
					appendable = append(appendable, e)
				}
			}
			if len(appendable) == 0 {
				return errNeedBootstrap
			}

			// Last write wins within one batch.
			latest := make(map[model.PointID]model.Point, len(points))
			order := make([]model.PointID, 0, len(points))
			for _, p := range points {
				if _, seen := latest[p.ID]; !seen {
					order = append(order, p.ID)
				}
				latest[p.ID] = p
			}

			target := make(map[model.PointID]*Entry, len(order))
			for _, id := range order {
				target[id] = appendable[u.rr.Add(1)%uint64(len(appendable))]
			}

			return u.fanOut(ctx, model.OpUpsertPoints, entries, func(e *Entry) error {
				for _, id := range order {
					p := latest[id]
					if target[id] == e {
						if err := e.Segment().Upsert(p.ID, p.Vector, p.Payload, version); err != nil {
							return err
						}
					} else {
						if err := e.Segment().Delete(p.ID, version); err != nil {
							return err
						}
					}
				}
				return nil
			})
		})
		if errors.Is(err, errNeedBootstrap) {
			if berr := u.bootstrapAppendable(); berr != nil {
				return berr
			}
			continue
		}
		return err
	}
	return ErrNoAppendableSegment
}

func (u *Updater) bootstrapAppendable() error {
	seg, err := u.factory(u.dim, u.metric)
	if err != nil {
		return ErrNoAppendableSegment
	}
	id := u.holder.Add(seg, true)
	u.logger.Info("bootstrapped appendable segment", "segment", id)
	return nil
}

// broadcast fans fn out to every segment in the current view.
func (u *Updater) broadcast(ctx context.Context, kind model.OperationKind, fn func(e *Entry) error) error {
	return u.holder.View(func(entries []*Entry) error {
		return u.fanOut(ctx, kind, entries, fn)
	})
}

// fanOut applies fn to every entry concurrently and aggregates failures.
// All segments are attempted even when some fail.
func (u *Updater) fanOut(ctx context.Context, kind model.OperationKind, entries []*Entry, fn func(e *Entry) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e *Entry) {
			defer wg.Done()
			if err := fn(e); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	if len(errs) > 0 {
		return &ApplyError{Kind: kind, Errs: errs}
	}
	return nil
}
