package collection

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
)

// Reader serves queries over a refcounted snapshot of the active segments.
// Every read fans out to all segments of the snapshot concurrently and
// merges the partial results; a swap committed mid-query does not disturb
// a read already in flight.
type Reader struct {
	holder *Holder
	dim    int
	logger *slog.Logger
	obs    Observer
}

// NewReader creates a reader over the holder.
func NewReader(holder *Holder, dim int, logger *slog.Logger, obs Observer) *Reader {
	return &Reader{holder: holder, dim: dim, logger: logger, obs: obs}
}

// Search runs a k-NN query across all segments and returns the top results
// ordered by score descending, ties broken by ascending id.
func (r *Reader) Search(ctx context.Context, req model.SearchRequest) (points []model.ScoredPoint, err error) {
	start := time.Now()
	defer func() { r.obs.OnRead("search", time.Since(start), err) }()

	if req.Top <= 0 {
		return nil, ErrInvalidArgument
	}
	if len(req.Vector) != r.dim {
		return nil, &DimensionMismatchError{Expected: r.dim, Actual: len(req.Vector)}
	}

	snap := r.holder.Snapshot()
	defer snap.Release()
	if len(snap.Entries()) == 0 {
		return nil, ErrZeroSegments
	}

	merged, err := r.searchSnapshot(ctx, snap, req.Vector, req, req.Top)
	if err != nil {
		return nil, err
	}
	return stripScored(merged, req.WithPayload, req.WithVector), nil
}

// Recommend searches with a query vector derived from stored exemplars:
// avg(positive vectors) minus avg(negative vectors). Exemplar ids are
// excluded from the results.
func (r *Reader) Recommend(ctx context.Context, req model.RecommendRequest) (points []model.ScoredPoint, err error) {
	start := time.Now()
	defer func() { r.obs.OnRead("recommend", time.Since(start), err) }()

	if req.Top <= 0 {
		return nil, ErrInvalidArgument
	}
	if len(req.Positive) == 0 {
		return nil, ErrEmptyPositive
	}

	snap := r.holder.Snapshot()
	defer snap.Release()
	if len(snap.Entries()) == 0 {
		return nil, ErrZeroSegments
	}

	exemplars := make([]model.PointID, 0, len(req.Positive)+len(req.Negative))
	exemplars = append(exemplars, req.Positive...)
	exemplars = append(exemplars, req.Negative...)

	resolved := resolveLatest(snap, exemplars)
	var missing []model.PointID
	for _, id := range exemplars {
		if _, ok := resolved[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingExemplarError{IDs: missing}
	}

	query := make([]float32, r.dim)
	accumulate(query, resolved, req.Positive, 1)
	accumulate(query, resolved, req.Negative, -1)

	exclude := make(map[model.PointID]struct{}, len(exemplars))
	for _, id := range exemplars {
		exclude[id] = struct{}{}
	}

	// Over-fetch so exemplars among the nearest neighbours do not shrink
	// the page below Top.
	sreq := model.SearchRequest{Filter: req.Filter, Top: req.Top}
	merged, err := r.searchSnapshot(ctx, snap, query, sreq, req.Top+len(exclude))
	if err != nil {
		return nil, err
	}

	out := merged[:0]
	for _, p := range merged {
		if _, skip := exclude[p.ID]; skip {
			continue
		}
		out = append(out, p)
	}
	if len(out) > req.Top {
		out = out[:req.Top]
	}
	return stripScored(out, req.WithPayload, req.WithVector), nil
}

// Scroll returns one page of live points in ascending id order, starting at
// the request offset. Completeness holds against the snapshot: every live
// point is returned by exactly one page of an uninterrupted scroll.
func (r *Reader) Scroll(ctx context.Context, req model.ScrollRequest) (result model.ScrollResult, err error) {
	start := time.Now()
	defer func() { r.obs.OnRead("scroll", time.Since(start), err) }()

	if req.Limit <= 0 {
		return model.ScrollResult{}, ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return model.ScrollResult{}, err
	}

	var from model.PointID
	if req.Offset != nil {
		from = *req.Offset
	}

	snap := r.holder.Snapshot()
	defer snap.Release()

	entries := snap.Entries()
	if len(entries) == 0 {
		return model.ScrollResult{}, ErrZeroSegments
	}
	partial := make([][]segment.Entry, len(entries))
	g, _ := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			seg := e.Segment()
			page := make([]segment.Entry, 0, req.Limit+1)
			seg.Iterate(from, func(entry segment.Entry) bool {
				if req.Filter != nil && !req.Filter.Matches(uint64(entry.ID), entry.Payload) {
					return true
				}
				page = append(page, entry)
				return len(page) < req.Limit+1
			})
			partial[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.ScrollResult{}, err
	}

	// Merge by id, duplicates resolved by highest write version.
	best := make(map[model.PointID]segment.Entry)
	for _, page := range partial {
		for _, entry := range page {
			if prev, ok := best[entry.ID]; !ok || entry.Version > prev.Version {
				best[entry.ID] = entry
			}
		}
	}
	ordered := make([]segment.Entry, 0, len(best))
	for _, entry := range best {
		ordered = append(ordered, entry)
	}
	slices.SortFunc(ordered, func(a, b segment.Entry) int {
		return cmp.Compare(a.ID, b.ID)
	})

	if len(ordered) > req.Limit {
		next := ordered[req.Limit].ID
		result.NextPageOffset = &next
		ordered = ordered[:req.Limit]
	}

	result.Points = make([]model.Record, 0, len(ordered))
	for _, entry := range ordered {
		rec := model.Record{ID: entry.ID}
		if req.WithPayload {
			rec.Payload = entry.Payload
		}
		if req.WithVector {
			rec.Vector = entry.Vector
		}
		result.Points = append(result.Points, rec)
	}
	return result, nil
}

// Retrieve fetches points by id. Missing ids are silently skipped; results
// keep the order of the input ids.
func (r *Reader) Retrieve(ctx context.Context, ids []model.PointID, withPayload, withVector bool) (records []model.Record, err error) {
	start := time.Now()
	defer func() { r.obs.OnRead("retrieve", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := r.holder.Snapshot()
	defer snap.Release()
	if len(snap.Entries()) == 0 {
		return nil, ErrZeroSegments
	}

	resolved := resolveLatest(snap, ids)
	records = make([]model.Record, 0, len(resolved))
	for _, id := range ids {
		entry, ok := resolved[id]
		if !ok {
			continue
		}
		rec := model.Record{ID: id}
		if withPayload {
			rec.Payload = entry.Payload
		}
		if withVector {
			rec.Vector = entry.Vector
		}
		records = append(records, rec)
	}
	return records, nil
}

// searchSnapshot fans a query out over the snapshot and merges the partial
// result lists into one globally ordered list of up to limit points.
func (r *Reader) searchSnapshot(ctx context.Context, snap *Snapshot, vector []float32, req model.SearchRequest, limit int) ([]model.ScoredPoint, error) {
	entries := snap.Entries()
	partial := make([][]model.ScoredPoint, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			res, err := e.Segment().Search(gctx, vector, req.Filter, limit)
			if err != nil {
				return err
			}
			partial[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []model.ScoredPoint
	for _, res := range partial {
		merged = append(merged, res...)
	}
	slices.SortFunc(merged, func(a, b model.ScoredPoint) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})

	// A point may appear in several partial lists while a routed upsert is
	// half-applied; the best-scored occurrence wins.
	seen := make(map[model.PointID]struct{}, len(merged))
	out := merged[:0]
	for _, p := range merged {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// resolveLatest finds the live entry for each id across all segments of
// the snapshot, keeping the copy with the highest write version.
func resolveLatest(snap *Snapshot, ids []model.PointID) map[model.PointID]segment.Entry {
	entries := snap.Entries()
	found := make([]map[model.PointID]segment.Entry, len(entries))

	var wg sync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func(i int, e *Entry) {
			defer wg.Done()
			local := make(map[model.PointID]segment.Entry)
			for _, id := range ids {
				if entry, ok := e.Segment().Get(id); ok {
					local[id] = entry
				}
			}
			found[i] = local
		}(i, e)
	}
	wg.Wait()

	resolved := make(map[model.PointID]segment.Entry)
	for _, local := range found {
		for id, entry := range local {
			if prev, ok := resolved[id]; !ok || entry.Version > prev.Version {
				resolved[id] = entry
			}
		}
	}
	return resolved
}

func accumulate(query []float32, resolved map[model.PointID]segment.Entry, ids []model.PointID, sign float32) {
	if len(ids) == 0 {
		return
	}
	w := sign / float32(len(ids))
	for _, id := range ids {
		vec := resolved[id].Vector
		for i := range query {
			query[i] += w * vec[i]
		}
	}
}

func stripScored(points []model.ScoredPoint, withPayload, withVector bool) []model.ScoredPoint {
	for i := range points {
		if !withPayload {
			points[i].Payload = nil
		}
		if !withVector {
			points[i].Vector = nil
		}
	}
	return points
}
