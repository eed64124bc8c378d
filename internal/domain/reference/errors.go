package reference

import "errors"

// Sentinel errors returned by the loader.
var (
	ErrEmptySource   = errors.New("reference source has no header row")
	ErrMissingColumn = errors.New("reference source is missing a required column")
	ErrNoSource      = errors.New("no reference source configured")
)
