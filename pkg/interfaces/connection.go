package interfaces

// Connection is an observer's transport handle. The broadcast hub writes
// events through it and treats any write error as a disconnect.
type Connection interface {
	// WriteJSON sends a JSON-encoded payload to the observer. It must be
	// safe for concurrent use; implementations serialize writes internally.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources. Close is
	// idempotent.
	Close() error
}
