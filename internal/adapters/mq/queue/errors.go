package queue

import "errors"

// Sentinel kinds for event store errors.
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrDuplicateEvent   = errors.New("event already exists")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrAlreadyProcessed = errors.New("event already processed")
	ErrQueueFull        = errors.New("event queue is full")
)
