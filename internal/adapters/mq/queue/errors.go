package queue

import "errors"

// Sentinel errors for enqueue failures.
var (
	ErrFull   = errors.New("dispatch queue full")
	ErrClosed = errors.New("dispatch queue closed")
)
