package model

import (
	"fmt"

	"github.com/vecora/vecora/metadata"
)

// PointID is the user-facing stable identifier of a point.
type PointID uint64

// SegmentID is the unique identifier of a segment within a collection.
// IDs are issued monotonically and never reused while referenced.
type SegmentID uint64

// String returns a string representation of the SegmentID.
func (s SegmentID) String() string {
	return fmt.Sprintf("seg(%d)", uint64(s))
}

// Point is an (id, vector, optional payload) triple.
type Point struct {
	ID      PointID
	Vector  []float32
	Payload metadata.Document
}

// Record is a materialized point returned by read operations.
// Vector and Payload are populated according to the request's inclusion flags.
type Record struct {
	ID      PointID
	Vector  []float32
	Payload metadata.Document
}

// ScoredPoint is a single search result.
// Score is similarity-oriented: higher is always better, regardless of metric.
// Constructed per query, never persisted.
type ScoredPoint struct {
	ID      PointID
	Score   float32
	Payload metadata.Document
	Vector  []float32
}

// UpdateStatus reports how far an update has progressed when the call returns.
type UpdateStatus int

const (
	// StatusAcknowledged means the operation was dispatched but is not yet
	// guaranteed visible to subsequent reads.
	StatusAcknowledged UpdateStatus = iota
	// StatusCompleted means the operation was applied to all target segments.
	StatusCompleted
)

func (s UpdateStatus) String() string {
	switch s {
	case StatusAcknowledged:
		return "acknowledged"
	case StatusCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// UpdateResult is returned by UpdateHandler.Apply.
type UpdateResult struct {
	Status UpdateStatus
}
