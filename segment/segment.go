// Package segment defines the capability contract a collection consumes
// from its data partitions. A segment is an independently searchable,
// individually thread-safe partition of points; its internal index
// structure is opaque to the collection core.
package segment

import (
	"context"
	"errors"

	"github.com/vecora/vecora/distance"
	"github.com/vecora/vecora/metadata"
	"github.com/vecora/vecora/model"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed segment.
	ErrClosed = errors.New("segment closed")

	// ErrDimensionMismatch is returned when a vector does not match the
	// segment's configured dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Entry is a stored point together with its write version.
type Entry struct {
	ID      model.PointID
	Vector  []float32
	Payload metadata.Document
	Version uint64
}

// Change records a mutation applied to a segment, used by the optimizer
// to reconcile writes that raced a merge build.
type Change struct {
	ID      model.PointID
	Deleted bool
	Version uint64
}

// Segment is an ordered, mutable partition of points.
//
// Implementations must serialize mutations (one writer at a time) and
// allow concurrent readers. Every mutation carries the write version
// assigned by the caller's operation log. Mutations of one id may arrive
// out of version order when operations fan out concurrently, so
// implementations must version-gate them: a mutation older than the
// stored record (or tombstone) for its id is a no-op.
type Segment interface {
	// Dim returns the fixed vector dimension.
	Dim() int

	// Metric returns the similarity metric of the segment.
	Metric() distance.Metric

	// Count returns the number of live points.
	Count() int

	// Upsert inserts or replaces a point.
	Upsert(id model.PointID, vector []float32, payload metadata.Document, version uint64) error

	// Delete removes a point. A record newer than the delete survives;
	// deleting an absent id leaves only a tombstone version behind.
	Delete(id model.PointID, version uint64) error

	// SetPayload merges fields into the point's payload.
	// Returns false without error if the segment does not hold the id.
	SetPayload(id model.PointID, payload metadata.Document, version uint64) (bool, error)

	// ClearPayload removes all payload fields from the point.
	// Returns false without error if the segment does not hold the id.
	ClearPayload(id model.PointID, version uint64) (bool, error)

	// DeleteByFilter removes all points matching the filter.
	// Returns the number of points removed.
	DeleteByFilter(filter *metadata.FilterSet, version uint64) (int, error)

	// Contains reports whether the segment holds a live point with the id.
	Contains(id model.PointID) bool

	// Get returns the live entry for the id.
	Get(id model.PointID) (Entry, bool)

	// Search returns up to top candidates matching the filter, ordered by
	// score descending with ties broken by ascending id.
	Search(ctx context.Context, vector []float32, filter *metadata.FilterSet, top int) ([]model.ScoredPoint, error)

	// Iterate calls fn for live entries in ascending id order, starting at
	// the first id >= from. Iteration stops when fn returns false.
	Iterate(from model.PointID, fn func(Entry) bool)

	// ChangedSince returns all mutations with version > since, in no
	// particular order.
	ChangedSince(since uint64) []Change

	// MaxVersion returns the highest write version applied to the segment.
	MaxVersion() uint64

	// Close releases resources associated with the segment.
	Close() error
}
