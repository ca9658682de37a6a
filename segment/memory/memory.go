// Package memory provides an in-memory Segment implementation backed by a
// flat scan. It is the reference segment used by the collection core and
// its tests; on-disk or indexed segments can replace it behind the same
// interface.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
)

type record struct {
	vector  []float32
	payload metadata.Document
	version uint64
}

// Segment is an in-memory, mutable segment.
//
// Mutations are serialized by an internal mutex; reads may run
// concurrently. The live id set is kept in a roaring bitmap so that
// ascending-id iteration (scroll) needs no sorting per call.
type Segment struct {
	mu     sync.RWMutex
	dim    int
	metric distance.Metric
	score  distance.Func

	points map[model.PointID]record
	live   *roaring64.Bitmap

	// deleted maps tombstoned ids to the version of their deletion.
	// Needed so ChangedSince can report deletes that raced a merge build.
	deleted map[model.PointID]uint64

	maxVersion uint64
	closed     bool
}

var _ segment.Segment = (*Segment)(nil)

// New creates an empty segment with the given dimension and metric.
func New(dim int, metric distance.Metric) (*Segment, error) {
	score, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	return &Segment{
		dim:     dim,
		metric:  metric,
		score:   score,
		points:  make(map[model.PointID]record),
		live:    roaring64.New(),
		deleted: make(map[model.PointID]uint64),
	}, nil
}

// Dim returns the fixed vector dimension.
func (s *Segment) Dim() int { return s.dim }

// Metric returns the similarity metric of the segment.
func (s *Segment) Metric() distance.Metric { return s.metric }

// Count returns the number of live points.
func (s *Segment) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}

// MaxVersion returns the highest write version applied to the segment.
func (s *Segment) MaxVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxVersion
}

// Upsert inserts or replaces a point. A stale upsert, older than the
// stored record or a tombstone for the id, is a no-op: update fan-out may
// deliver per-segment mutations of one id in any order.
func (s *Segment) Upsert(id model.PointID, vector []float32, payload metadata.Document, version uint64) error {
	if len(vector) != s.dim {
		return segment.ErrDimensionMismatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return segment.ErrClosed
	}

	if rec, ok := s.points[id]; ok && rec.version > version {
		return nil
	}
	if s.deleted[id] > version {
		return nil
	}

	s.points[id] = record{
		vector:  slices.Clone(vector),
		payload: payload.Clone(),
		version: version,
	}
	s.live.Add(uint64(id))
	delete(s.deleted, id)
	s.bumpVersion(version)
	return nil
}

// Delete removes a point. A record newer than the delete survives, and a
// tombstone is kept even for absent ids so that a delete racing an older
// upsert wins regardless of arrival order.
func (s *Segment) Delete(id model.PointID, version uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return segment.ErrClosed
	}

	if rec, ok := s.points[id]; ok {
		if rec.version > version {
			return nil
		}
		delete(s.points, id)
		s.live.Remove(uint64(id))
	}
	if s.deleted[id] < version {
		s.deleted[id] = version
	}
	s.bumpVersion(version)
	return nil
}

// SetPayload merges fields into the point's payload.
func (s *Segment) SetPayload(id model.PointID, payload metadata.Document, version uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, segment.ErrClosed
	}

	rec, ok := s.points[id]
	if !ok {
		return false, nil
	}
	if rec.version > version {
		return true, nil
	}
	if rec.payload == nil {
		rec.payload = make(metadata.Document, len(payload))
	} else {
		rec.payload = rec.payload.Clone()
	}
	rec.payload.Merge(payload)
	rec.version = version
	s.points[id] = rec
	s.bumpVersion(version)
	return true, nil
}

// ClearPayload removes all payload fields from the point.
func (s *Segment) ClearPayload(id model.PointID, version uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, segment.ErrClosed
	}

	rec, ok := s.points[id]
	if !ok {
		return false, nil
	}
	if rec.version > version {
		return true, nil
	}
	rec.payload = nil
	rec.version = version
	s.points[id] = rec
	s.bumpVersion(version)
	return true, nil
}

// DeleteByFilter removes all points matching the filter.
func (s *Segment) DeleteByFilter(filter *metadata.FilterSet, version uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, segment.ErrClosed
	}

	var doomed []model.PointID
	for id, rec := range s.points {
		if rec.version > version {
			continue
		}
		if filter.Matches(uint64(id), rec.payload) {
			doomed = append(doomed, id)
		}
	}
	for _, id := range doomed {
		delete(s.points, id)
		s.live.Remove(uint64(id))
		if s.deleted[id] < version {
			s.deleted[id] = version
		}
	}
	s.bumpVersion(version)
	return len(doomed), nil
}

// Contains reports whether the segment holds a live point with the id.
func (s *Segment) Contains(id model.PointID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live.Contains(uint64(id))
}

// Get returns the live entry for the id.
func (s *Segment) Get(id model.PointID) (segment.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.points[id]
	if !ok {
		return segment.Entry{}, false
	}
	return segment.Entry{
		ID:      id,
		Vector:  slices.Clone(rec.vector),
		Payload: rec.payload.Clone(),
		Version: rec.version,
	}, true
}

// Search scans all live points, scores them against the query vector and
// returns up to top results ordered by score descending, ties broken by
// ascending id.
func (s *Segment) Search(ctx context.Context, vector []float32, filter *metadata.FilterSet, top int) ([]model.ScoredPoint, error) {
	if len(vector) != s.dim {
		return nil, segment.ErrDimensionMismatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, segment.ErrClosed
	}

	results := make([]model.ScoredPoint, 0, top)
	for id, rec := range s.points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !filter.Matches(uint64(id), rec.payload) {
			continue
		}
		results = append(results, model.ScoredPoint{
			ID:      id,
			Score:   s.score(vector, rec.vector),
			Payload: rec.payload.Clone(),
			Vector:  slices.Clone(rec.vector),
		})
	}

	slices.SortFunc(results, func(a, b model.ScoredPoint) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if len(results) > top {
		results = results[:top]
	}
	return results, nil
}

// Iterate calls fn for live entries in ascending id order, starting at the
// first id >= from.
func (s *Segment) Iterate(from model.PointID, fn func(segment.Entry) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it := s.live.Iterator()
	it.AdvanceIfNeeded(uint64(from))
	for it.HasNext() {
		id := model.PointID(it.Next())
		rec := s.points[id]
		entry := segment.Entry{
			ID:      id,
			Vector:  slices.Clone(rec.vector),
			Payload: rec.payload.Clone(),
			Version: rec.version,
		}
		if !fn(entry) {
			return
		}
	}
}

// ChangedSince returns all mutations with version > since.
func (s *Segment) ChangedSince(since uint64) []segment.Change {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var changes []segment.Change
	for id, rec := range s.points {
		if rec.version > since {
			changes = append(changes, segment.Change{ID: id, Version: rec.version})
		}
	}
	for id, v := range s.deleted {
		if v > since {
			changes = append(changes, segment.Change{ID: id, Deleted: true, Version: v})
		}
	}
	return changes
}

// Close releases the segment. Further mutations fail with ErrClosed.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Segment) bumpVersion(version uint64) {
	if version > s.maxVersion {
		s.maxVersion = version
	}
}
