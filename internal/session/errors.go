package session

import "errors"

// Session registry error types
var (
	ErrInvalidSessionID  = errors.New("session id must be 1-128 characters")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionNotRunning = errors.New("session is not running")
)
