package timebox

import "errors"

// Sentinel kinds for scheduler input errors.
var (
	ErrInvalidDuration  = errors.New("target duration must be positive")
	ErrEmptyPool        = errors.New("no eligible exercises in pool")
	ErrInvalidCandidate = errors.New("exercise candidate has no id")
)
