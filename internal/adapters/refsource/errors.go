package refsource

import "errors"

// Sentinel errors for reference sources.
var (
	ErrSourceUnavailable = errors.New("reference source unavailable")
	ErrUnexpectedStatus  = errors.New("reference source returned unexpected status")
)
