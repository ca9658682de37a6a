// Package vecora provides the mutable storage core of an embedded vector
// search collection.
//
// A collection shards its points over a dynamic set of segments: a few
// appendable segments absorb writes while read-only segments serve the
// bulk of the data. A background optimizer continuously merges and seals
// segments without stalling reads or writes; queries fan out over a
// consistent snapshot of all segments and merge the partial results.
//
// # Quick Start
//
//	ctx := context.Background()
//	c, err := vecora.New(128, distance.MetricCosine)
//	if err != nil {
//	    panic(err)
//	}
//	defer c.Close()
//
//	_, err = c.Upsert(ctx, true, model.Point{
//	    ID:     1,
//	    Vector: embedding,
//	    Payload: metadata.Document{
//	        "category": metadata.String("tech"),
//	    },
//	})
//
//	results, err := c.Search(ctx, model.SearchRequest{
//	    Vector:      query,
//	    Top:         10,
//	    WithPayload: true,
//	})
//
// # Consistency
//
// Every update carries wait semantics. With wait=true the call returns
// once the mutation is visible to subsequent reads and background
// optimization has settled. With wait=false the mutation is acknowledged
// and applied by a background worker; readers observe it shortly after.
// Durability is the caller's concern: vecora assumes an external
// operation log whose replay makes re-application of updates safe.
package vecora

import (
	"context"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/internal/collection"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
)

// Collection is a mutable, concurrently searchable set of points.
type Collection struct {
	core *collection.Core
}

// New creates a collection of dim-dimensional vectors compared with the
// given metric.
func New(dim int, metric distance.Metric, optFns ...Option) (*Collection, error) {
	opts := applyOptions(optFns)
	core, err := collection.New(opts.coreConfig(dim, metric))
	if err != nil {
		return nil, translateError(err)
	}
	return &Collection{core: core}, nil
}

// Apply applies one update operation.
//
// With wait=true the returned status is StatusCompleted and the mutation
// is visible to subsequent reads. With wait=false the operation is queued
// and the status is StatusAcknowledged.
func (c *Collection) Apply(ctx context.Context, op model.UpdateOperation, wait bool) (model.UpdateResult, error) {
	res, err := c.core.Apply(ctx, op, wait)
	return res, translateError(err)
}

// Upsert inserts or replaces the given points.
func (c *Collection) Upsert(ctx context.Context, wait bool, points ...model.Point) (model.UpdateResult, error) {
	return c.Apply(ctx, model.UpdateOperation{Kind: model.OpUpsertPoints, Points: points}, wait)
}

// Delete removes the given points. Absent ids are ignored.
func (c *Collection) Delete(ctx context.Context, wait bool, ids ...model.PointID) (model.UpdateResult, error) {
	return c.Apply(ctx, model.DeletePoints(ids...), wait)
}

// DeleteByFilter removes all points matching the filter.
func (c *Collection) DeleteByFilter(ctx context.Context, wait bool, filter *metadata.FilterSet) (model.UpdateResult, error) {
	return c.Apply(ctx, model.DeletePointsByFilter(filter), wait)
}

// SetPayload merges payload fields into the given points.
func (c *Collection) SetPayload(ctx context.Context, wait bool, payload metadata.Document, ids ...model.PointID) (model.UpdateResult, error) {
	return c.Apply(ctx, model.SetPayload(payload, ids...), wait)
}

// ClearPayload removes all payload fields from the given points.
func (c *Collection) ClearPayload(ctx context.Context, wait bool, ids ...model.PointID) (model.UpdateResult, error) {
	return c.Apply(ctx, model.ClearPayload(ids...), wait)
}

// Search returns the Top points most similar to the query vector, ordered
// by score descending with ties broken by ascending id. Scores are
// similarity oriented for every metric: higher is better.
func (c *Collection) Search(ctx context.Context, req model.SearchRequest) ([]model.ScoredPoint, error) {
	res, err := c.core.Search(ctx, req)
	return res, translateError(err)
}

// Recommend searches with a query derived from stored exemplar points:
// the average of the positive vectors minus the average of the negative
// ones. Exemplars are excluded from the results.
func (c *Collection) Recommend(ctx context.Context, req model.RecommendRequest) ([]model.ScoredPoint, error) {
	res, err := c.core.Recommend(ctx, req)
	return res, translateError(err)
}

// Scroll returns one page of points in ascending id order. Pass the
// returned NextPageOffset as the next request's Offset to continue.
func (c *Collection) Scroll(ctx context.Context, req model.ScrollRequest) (model.ScrollResult, error) {
	res, err := c.core.Scroll(ctx, req)
	return res, translateError(err)
}

// Retrieve fetches points by id, preserving the input order. Missing ids
// are skipped.
func (c *Collection) Retrieve(ctx context.Context, ids []model.PointID, withPayload, withVector bool) ([]model.Record, error) {
	res, err := c.core.Retrieve(ctx, ids, withPayload, withVector)
	return res, translateError(err)
}

// Optimize runs a full optimization pass and waits for it to settle.
// Optimization also runs continuously in the background; calling this is
// only needed to force compaction at a quiet moment.
func (c *Collection) Optimize(ctx context.Context) error {
	return translateError(c.core.Optimize(ctx))
}

// Count returns the number of live points.
func (c *Collection) Count() int {
	return c.core.Count()
}

// SegmentCount returns the number of live segments.
func (c *Collection) SegmentCount() int {
	return c.core.SegmentCount()
}

// Close drains pending updates, stops background optimization and
// releases all segments. Close is idempotent.
func (c *Collection) Close() error {
	return translateError(c.core.Close())
}
