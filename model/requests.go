package model

import "github.com/vecora/vecora/metadata"

// SearchRequest describes a single k-NN query.
type SearchRequest struct {
	// Vector is the query vector. Must match the collection dimension.
	Vector []float32

	// Filter restricts candidates to matching points. Nil matches all.
	Filter *metadata.FilterSet

	// Top is the maximum number of results to return.
	Top int

	// WithPayload includes point payloads in the results.
	WithPayload bool
	// WithVector includes stored vectors in the results.
	WithVector bool
}

// RecommendRequest describes a query derived from stored exemplars.
// The query vector is avg(positive vectors) - avg(negative vectors).
// Exemplar ids are excluded from the results.
type RecommendRequest struct {
	// Positive exemplar ids. Must not be empty.
	Positive []PointID
	// Negative exemplar ids. May be empty.
	Negative []PointID

	Filter *metadata.FilterSet
	Top    int

	WithPayload bool
	WithVector  bool
}

// ScrollRequest describes one page of an id-ordered scan.
type ScrollRequest struct {
	// Offset is the first id to include. Nil starts from the beginning.
	Offset *PointID

	// Limit is the page size.
	Limit int

	Filter *metadata.FilterSet

	WithPayload bool
	WithVector  bool
}

// ScrollResult is one page of an id-ordered scan.
type ScrollResult struct {
	Points []Record

	// NextPageOffset is the id to pass as Offset for the next page,
	// or nil if no live points remain.
	NextPageOffset *PointID
}
