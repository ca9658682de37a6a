package model

import "github.com/vecora/vecora/metadata"

// OperationKind discriminates the variants of UpdateOperation.
type OperationKind int

const (
	// OpUpsertPoints inserts or replaces points.
	OpUpsertPoints OperationKind = iota
	// OpDeletePoints deletes points by id.
	OpDeletePoints
	// OpDeletePointsByFilter deletes all points matching a filter.
	OpDeletePointsByFilter
	// OpSetPayload merges payload fields into the given points.
	OpSetPayload
	// OpClearPayload removes all payload fields from the given points.
	OpClearPayload
)

func (k OperationKind) String() string {
	switch k {
	case OpUpsertPoints:
		return "upsert_points"
	case OpDeletePoints:
		return "delete_points"
	case OpDeletePointsByFilter:
		return "delete_points_by_filter"
	case OpSetPayload:
		return "set_payload"
	case OpClearPayload:
		return "clear_payload"
	default:
		return "unknown"
	}
}

// UpdateOperation is a tagged union over the supported write operations.
// It carries no segment affinity; routing is the UpdateHandler's job.
// Only the fields relevant to Kind are consulted.
type UpdateOperation struct {
	Kind OperationKind

	// Points holds the points for OpUpsertPoints.
	Points []Point

	// IDs holds the target ids for OpDeletePoints, OpSetPayload and OpClearPayload.
	IDs []PointID

	// Filter selects the target points for OpDeletePointsByFilter.
	Filter *metadata.FilterSet

	// Payload holds the fields to merge for OpSetPayload.
	Payload metadata.Document
}

// UpsertPoints builds an upsert operation from parallel id/vector slices.
// payloads may be nil, or have one entry per id (nil entries allowed).
func UpsertPoints(ids []PointID, vectors [][]float32, payloads []metadata.Document) UpdateOperation {
	points := make([]Point, len(ids))
	for i, id := range ids {
		points[i] = Point{ID: id, Vector: vectors[i]}
		if payloads != nil {
			points[i].Payload = payloads[i]
		}
	}
	return UpdateOperation{Kind: OpUpsertPoints, Points: points}
}

// DeletePoints builds a delete-by-id operation.
func DeletePoints(ids ...PointID) UpdateOperation {
	return UpdateOperation{Kind: OpDeletePoints, IDs: ids}
}

// DeletePointsByFilter builds a delete-by-filter operation.
func DeletePointsByFilter(filter *metadata.FilterSet) UpdateOperation {
	return UpdateOperation{Kind: OpDeletePointsByFilter, Filter: filter}
}

// SetPayload builds a payload-merge operation for the given points.
func SetPayload(payload metadata.Document, ids ...PointID) UpdateOperation {
	return UpdateOperation{Kind: OpSetPayload, IDs: ids, Payload: payload}
}

// ClearPayload builds a payload-clear operation for the given points.
func ClearPayload(ids ...PointID) UpdateOperation {
	return UpdateOperation{Kind: OpClearPayload, IDs: ids}
}
