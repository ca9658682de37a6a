package vecora

import (
	"errors"
	"fmt"

	"github.com/vecora/vecora/internal/collection"
	"github.com/vecora/vecora/model"
)

var (
	// ErrClosed is returned when an operation is attempted on a closed collection.
	ErrClosed = errors.New("collection closed")

	// ErrInvalidArgument is returned when a request argument is invalid,
	// e.g. a non-positive limit or a vector of the wrong dimension.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoAppendableSegment is returned when an upsert cannot be routed
	// because no segment accepts writes and none could be created.
	ErrNoAppendableSegment = errors.New("no appendable segment")

	// ErrZeroSegments is returned when a query finds no live segments.
	ErrZeroSegments = errors.New("no live segments")

	// ErrEmptyPositive is returned by Recommend when no positive exemplars
	// are given.
	ErrEmptyPositive = errors.New("at least one positive exemplar required")
)

// DimensionMismatchError indicates a vector/query dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

// Is makes the error match ErrInvalidArgument.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// MissingExemplarError indicates recommend exemplars absent from the
// collection.
type MissingExemplarError struct {
	IDs   []model.PointID
	cause error
}

func (e *MissingExemplarError) Error() string {
	return fmt.Sprintf("exemplar points not found: %v", e.IDs)
}

func (e *MissingExemplarError) Unwrap() error { return e.cause }

// ApplyError aggregates per-segment failures of one update operation.
// Segments that already applied their share keep the partial mutation; the
// caller's operation log makes re-application safe.
type ApplyError struct {
	Errs  []error
	cause error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("update failed on %d segment(s)", len(e.Errs))
}

func (e *ApplyError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var dm *collection.DimensionMismatchError
	if errors.As(err, &dm) {
		return &DimensionMismatchError{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	var me *collection.MissingExemplarError
	if errors.As(err, &me) {
		return &MissingExemplarError{IDs: me.IDs, cause: err}
	}
	var ae *collection.ApplyError
	if errors.As(err, &ae) {
		return &ApplyError{Errs: ae.Errs, cause: err}
	}

	switch {
	case errors.Is(err, collection.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, collection.ErrNoAppendableSegment):
		return fmt.Errorf("%w: %w", ErrNoAppendableSegment, err)
	case errors.Is(err, collection.ErrZeroSegments):
		return fmt.Errorf("%w: %w", ErrZeroSegments, err)
	case errors.Is(err, collection.ErrEmptyPositive):
		return fmt.Errorf("%w: %w", ErrEmptyPositive, err)
	case errors.Is(err, collection.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
