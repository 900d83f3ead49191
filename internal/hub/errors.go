package hub

import "errors"

// Hub error types
var (
	ErrNilConnection = errors.New("connection cannot be nil")
	ErrHubClosed     = errors.New("hub is closed")
)
