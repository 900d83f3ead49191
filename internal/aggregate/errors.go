package aggregate

import "errors"

// Aggregation error types
var (
	ErrSessionFinalized = errors.New("session aggregate is finalized")
)
