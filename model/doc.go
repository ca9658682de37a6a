// Package model defines core types used throughout Vecora.
//
// # Identity Types
//
//   - PointID: Globally unique, user-assigned primary key (uint64)
//   - SegmentID: Unique identifier for a segment (uint64)
//
// # Data Types
//
//   - Point: A (PointID, vector, optional payload) triple
//   - Record: A materialized point returned by read operations
//   - ScoredPoint: A search result with score and optional data
//
// # Operations
//
//   - UpdateOperation: Tagged union over the supported write operations
//   - SearchRequest / RecommendRequest / ScrollRequest: Immutable read requests
package model
