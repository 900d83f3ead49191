package interfaces

import (
	"context"
	"lectern/pkg/types"
)

// ResultStore is the persistence collaborator for finished assessments.
// Store is invoked exactly once per completed session, after finalize and
// before the session is removed from the registry; failures are logged by
// the caller and never roll back the in-memory finalize or broadcast.
type ResultStore interface {
	// Store persists the final result for a completed session together with
	// the session's metadata.
	Store(ctx context.Context, sess *types.Session, result *types.AssessmentResult) error

	// GetResult retrieves a stored assessment by ID.
	GetResult(ctx context.Context, sessionID string) (*types.AssessmentRecord, error)

	// ListAssessments returns all stored assessments, newest first.
	ListAssessments(ctx context.Context) ([]*types.AssessmentRecord, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources. No methods may be called after
	// Close returns.
	Close() error
}
