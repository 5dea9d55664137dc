package svd

import (
	"errors"
	"fmt"
)

// Sentinels for the failure modes of a decomposition or an inversion.
// The typed errors below match them through errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidRank        = errors.New("invalid rank")
	ErrSingularTruncation = errors.New("singular truncation")
	ErrShapeMismatch      = errors.New("shape mismatch")
)

// InvalidInputError reports a non-finite or otherwise unusable
// operator or observation vector.
type InvalidInputError struct {
	What   string
	Row    int
	Col    int
	Value  float64
	Reason string
}

func (e InvalidInputError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.What, e.Reason)
	}
	return fmt.Sprintf("invalid %s: non-finite value %v at (%d, %d)", e.What, e.Value, e.Row, e.Col)
}

func (e InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InvalidRankError is returned for a truncation rank outside [1, Max].
type InvalidRankError struct {
	K   int
	Max int
}

func (e InvalidRankError) Error() string {
	return fmt.Sprintf("rank %d is out of range, must be between 1 and %d", e.K, e.Max)
}

func (e InvalidRankError) Is(target error) bool {
	return target == ErrInvalidRank
}

// SingularTruncationError means one of the top-K singular values is at or
// below the numerical floor, so 1/s would blow up.
type SingularTruncationError struct {
	K     int
	Index int
	Value float64
	Floor float64
}

func (e SingularTruncationError) Error() string {
	return fmt.Sprintf("rank %d includes singular value #%d = %g which is at or below the floor %g",
		e.K, e.Index+1, e.Value, e.Floor)
}

func (e SingularTruncationError) Is(target error) bool {
	return target == ErrSingularTruncation
}

// ShapeMismatchError reports a vector or matrix whose size does not fit
// the operator or the output grid.
type ShapeMismatchError struct {
	What string
	Got  int
	Want int
}

func (e ShapeMismatchError) Error() string {
	return fmt.Sprintf("mismatched %s: got %d, need %d", e.What, e.Got, e.Want)
}

func (e ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// ErrorKind returns a short label for err, suitable as a metric label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidRank):
		return "invalid_rank"
	case errors.Is(err, ErrSingularTruncation):
		return "singular_truncation"
	case errors.Is(err, ErrShapeMismatch):
		return "shape_mismatch"
	default:
		return "other"
	}
}

// IsInputError reports whether err is one of the deterministic input or
// numerical errors above, as opposed to an I/O or internal failure.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidRank) ||
		errors.Is(err, ErrSingularTruncation) || errors.Is(err, ErrShapeMismatch)
}
