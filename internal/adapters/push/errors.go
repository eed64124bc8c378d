package push

import "errors"

// Sentinel errors for the push hub.
var (
	ErrBroadcastTimeout = errors.New("push broadcast buffer stayed full")
	ErrEncode           = errors.New("push message encoding failed")
)
