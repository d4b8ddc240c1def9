package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrInvalidEntry = errors.New("invalid ledger entry")
	ErrInvalidOwner = errors.New("owner id is required")
	ErrInvalidLimit = errors.New("invalid limit")
)
