package dispatcher

import "errors"

// Sentinel errors for dispatching.
var (
	ErrUnknownKind       = errors.New("no handler for event kind")
	ErrInvalidPolicy     = errors.New("invalid unknown kind policy")
	ErrMissingDependency = errors.New("dispatcher dependency is nil")
)
