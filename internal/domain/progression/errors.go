package progression

import "errors"

// ErrInvalidPlan reports a progression plan the engine cannot reason about.
var ErrInvalidPlan = errors.New("invalid progression plan")
