package store

import "errors"

// Store error types
var (
	ErrNotFound    = errors.New("assessment not found")
	ErrStoreClosed = errors.New("result store is closed")
)
