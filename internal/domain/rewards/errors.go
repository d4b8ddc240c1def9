package rewards

import "errors"

// Sentinel kinds for handler failures.
var (
	ErrInvalidPayload = errors.New("invalid event payload")
	ErrMissingOwner   = errors.New("event has no owner")
	ErrKindMismatch   = errors.New("event routed to the wrong handler")
)
