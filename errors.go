package ringvec

import (
	"errors"
	"fmt"

	"github.com/hupe1980/ringvec/engine"
)

// ErrClosed is returned when operating on a closed store.
var ErrClosed = engine.ErrClosed

// ErrNilRecord is returned when a nil record is inserted.
var ErrNilRecord = errors.New("nil record")

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrInvalidDimension indicates an invalid configured or inserted dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// ErrInvalidShardCount indicates a shard count outside [1, engine.MaxShards].
type ErrInvalidShardCount struct {
	Count int
}

func (e *ErrInvalidShardCount) Error() string {
	return fmt.Sprintf("invalid shard count: %d (must be between 1 and %d)", e.Count, engine.MaxShards)
}

// ErrInvalidCapacity indicates a non-positive shard capacity.
type ErrInvalidCapacity struct {
	Capacity int
}

func (e *ErrInvalidCapacity) Error() string {
	return fmt.Sprintf("invalid shard capacity: %d", e.Capacity)
}

// RecordError reports a record InsertBatch rejected. Index is the position of
// the record in the batch.
type RecordError struct {
	Index int
	ID    string
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record #%d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %q: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
