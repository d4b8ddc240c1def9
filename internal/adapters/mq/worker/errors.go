package worker

import "errors"

// Sentinel errors for the cycle pool.
var (
	ErrNoCyclers       = errors.New("pool needs at least one cycler")
	ErrInvalidSchedule = errors.New("invalid cycle schedule")
	ErrAlreadyStarted  = errors.New("pool already started")
	ErrNotStarted      = errors.New("pool not started")
)
