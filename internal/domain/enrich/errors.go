package enrich

import "errors"

// ErrMalformedEvent marks a payload that is not a launch-monitor shot message.
var ErrMalformedEvent = errors.New("malformed shot event")
