package points

import "errors"

// Sentinel kinds for ledger arithmetic errors.
var (
	ErrPointsMismatch = errors.New("ledger points do not match their factors")
	ErrNegativeFactor = errors.New("multiplier factor must not be negative")
	ErrUnknownTxnType = errors.New("unknown transaction type")
)
