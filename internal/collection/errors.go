package collection

import (
	"errors"
	"fmt"

	"github.com/vecora/vecora/model"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed collection.
	ErrClosed = errors.New("collection closed")

	// ErrInvalidArgument is returned when an argument is invalid (e.g. wrong
	// dimension, non-positive top or limit).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoAppendableSegment is returned when an upsert cannot be routed
	// because no appendable segment exists.
	ErrNoAppendableSegment = errors.New("no appendable segment")

	// ErrZeroSegments is returned when a read request finds no live segments.
	ErrZeroSegments = errors.New("no live segments")

	// ErrEmptyPositive is returned when a recommend request carries no
	// positive exemplars.
	ErrEmptyPositive = errors.New("recommend request requires at least one positive exemplar")
)

// DimensionMismatchError indicates a vector/query dimensionality mismatch.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes the error match ErrInvalidArgument.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// MissingExemplarError indicates recommend exemplars absent from every segment.
type MissingExemplarError struct {
	IDs []model.PointID
}

func (e *MissingExemplarError) Error() string {
	return fmt.Sprintf("exemplar points not found: %v", e.IDs)
}

// ApplyError aggregates per-segment failures of one update operation.
// Segments that already applied their share keep the partial mutation;
// the external operation log makes re-application safe.
type ApplyError struct {
	Kind model.OperationKind
	Errs []error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s failed on %d segment(s): %v", e.Kind, len(e.Errs), errors.Join(e.Errs...))
}

func (e *ApplyError) Unwrap() []error { return e.Errs }
