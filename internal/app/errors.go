package service

import "errors"

// ErrNotStarted is returned by operations that need the dispatcher running.
var ErrNotStarted = errors.New("service not started")
