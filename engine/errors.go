package engine

import "errors"

// ErrClosed is returned when operating on a closed store or worker pool.
var ErrClosed = errors.New("engine: closed")
