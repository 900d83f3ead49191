package types

// ClampMetric clamps a numeric metric value into [0,100]. Out-of-range input
// from an upstream analyzer is clamped rather than rejected so a malformed
// analyzer cannot corrupt session aggregates.
func ClampMetric(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// IsValidSessionID reports whether id is usable as a session identifier.
// IDs are opaque; the only requirement is that they are non-empty and of
// bounded length.
func IsValidSessionID(id string) bool {
	return len(id) > 0 && len(id) <= 128
}

// IsValidEmotion reports whether label is in the fixed emotion vocabulary.
func IsValidEmotion(label string) bool {
	for _, e := range Emotions {
		if e == label {
			return true
		}
	}
	return false
}

// IsValidState reports whether s is a known session lifecycle state.
func IsValidState(s string) bool {
	switch s {
	case StateCreated, StateRunning, StateCompleting, StateCompleted, StateAbandoned:
		return true
	}
	return false
}

// IsTerminalState reports whether s is a terminal lifecycle state.
func IsTerminalState(s string) bool {
	return s == StateCompleted || s == StateAbandoned
}
