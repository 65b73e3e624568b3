package transform

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPath is returned when no transformation exists between two systems.
	ErrNoPath = errors.New("no transformation path")

	// ErrLengthMismatch is returned when x and y slices differ in length.
	ErrLengthMismatch = errors.New("coordinate slices differ in length")

	// ErrClosed is returned by Transform after Close.
	ErrClosed = errors.New("transformer closed")
)

// PointError reports that some points could not be transformed.
type PointError struct {
	Failed int   // number of points set to +Inf
	Total  int   // number of points in the call
	First  int   // index of the first failed point
	Err    error // cause of the first failure
}

func (e *PointError) Error() string {
	return fmt.Sprintf("%d of %d points failed to transform (first at index %d): %v",
		e.Failed, e.Total, e.First, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}
