// Package pipeline wires the session analysis flow together: a sample's
// arrival runs analyze -> aggregate -> broadcast, and a completion event runs
// finalize -> score -> recommend -> broadcast -> persist. Errors stay local
// to their session; observer and persistence failures are logged and never
// propagate back into the pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"lectern/internal/hub"
	"lectern/internal/recommend"
	"lectern/internal/scoring"
	"lectern/internal/session"
	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Coordinator owns the end-to-end flow for all live sessions. Concurrency is
// scoped per session: the registry handle serializes one session's mutations
// while unrelated sessions proceed in parallel.
type Coordinator struct {
	registry *session.Registry
	analyzer interfaces.SignalAnalyzer
	hub      *hub.Hub
	store    interfaces.ResultStore
}

// NewCoordinator creates a coordinator over the given collaborators. The
// store may be nil, in which case final results are broadcast but not
// persisted.
func NewCoordinator(registry *session.Registry, analyzer interfaces.SignalAnalyzer, h *hub.Hub, store interfaces.ResultStore) *Coordinator {
	return &Coordinator{
		registry: registry,
		analyzer: analyzer,
		hub:      h,
		store:    store,
	}
}

// Create registers a new session in the created state. Creating an existing
// session id returns the existing session unchanged.
func (c *Coordinator) Create(sessionID string, meta session.Metadata) (types.Session, error) {
	h, created, err := c.registry.GetOrCreate(sessionID, meta)
	if err != nil {
		return types.Session{}, err
	}
	if !created {
		log.Printf("Create on existing session: id=%s", sessionID)
	}
	return h.Session(), nil
}

// Start moves a session from created to running. A second start on a running
// session is an idempotent no-op success.
func (c *Coordinator) Start(sessionID string) error {
	return c.registry.Transition(sessionID, types.StateRunning)
}

// Ingest processes one raw input for a running session: the analyzer turns it
// into a metric sample, the session's aggregator folds it in, and a
// live-update event is published to the session's observers. The sample is
// dropped, never queued, when the session is not running.
func (c *Coordinator) Ingest(ctx context.Context, sessionID string, raw types.RawInput) (*types.AggregatedSnapshot, error) {
	h, err := c.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	sample, err := c.analyzer.Analyze(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalyzerFailed, err)
	}
	sample.SessionID = sessionID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	// Publishing under the session lock keeps live updates in ingest order
	// for every observer. The hub enqueue never blocks, so holding the lock
	// across it is safe.
	return h.IngestThen(sample, func(snap *types.AggregatedSnapshot) {
		c.hub.Publish(sessionID, &types.Event{
			Type:      types.EventLiveUpdate,
			SessionID: sessionID,
			Timestamp: sample.Timestamp,
			Snapshot:  snap,
		})
	})
}

// Complete finishes a running session: the aggregate is finalized, scoring
// and recommendation run on the final snapshot, the result is broadcast as a
// final-result event, handed to the persistence collaborator, and the session
// is retired from the registry. Completing a session that is not running
// fails with ErrInvalidTransition.
func (c *Coordinator) Complete(ctx context.Context, sessionID string) (*types.AssessmentResult, error) {
	h, err := c.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if err := h.Transition(types.StateCompleting); err != nil {
		return nil, err
	}

	// Finalize freezes the aggregate, so no ingest can mutate the snapshot
	// between here and scoring.
	final := h.Finalize()
	score := scoring.Score(final)

	result := &types.AssessmentResult{
		SessionID:        sessionID,
		OverallScore:     score,
		Eligibility:      scoring.Eligibility(score),
		Recommendations:  recommend.Recommend(final),
		DetailedAnalysis: final,
		CompletedAt:      time.Now(),
	}

	c.hub.Publish(sessionID, &types.Event{
		Type:      types.EventFinalResult,
		SessionID: sessionID,
		Timestamp: result.CompletedAt,
		Result:    result,
	})

	// Best-effort persistence: a store failure is logged but does not roll
	// back the finalize or the broadcast.
	if c.store != nil {
		sess := h.Session()
		sess.State = types.StateCompleted
		if err := c.store.Store(ctx, &sess, result); err != nil {
			log.Printf("Failed to persist assessment result: session=%s err=%v", sessionID, err)
		}
	}

	if err := h.Transition(types.StateCompleted); err != nil {
		// completing -> completed is always legal; reaching this means a bug.
		log.Printf("Unexpected transition failure on completion: session=%s err=%v", sessionID, err)
	}
	c.registry.Remove(sessionID)

	log.Printf("Completed session: id=%s score=%.1f eligibility=%s samples=%d",
		sessionID, result.OverallScore, result.Eligibility, final.SampleCount)
	return result, nil
}

// Abandon terminates a session from any non-terminal state without computing
// a result. Observers receive a payload-free session-ended event and the
// session is retired.
func (c *Coordinator) Abandon(sessionID string) error {
	h, err := c.registry.Get(sessionID)
	if err != nil {
		return err
	}

	if err := h.Transition(types.StateAbandoned); err != nil {
		return err
	}
	h.Finalize()

	c.hub.Publish(sessionID, &types.Event{
		Type:      types.EventSessionEnded,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
	c.registry.Remove(sessionID)

	log.Printf("Abandoned session: id=%s", sessionID)
	return nil
}

// Snapshot returns the current aggregate of a live session.
func (c *Coordinator) Snapshot(sessionID string) (*types.AggregatedSnapshot, error) {
	h, err := c.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return h.Snapshot(), nil
}

// Session returns the live session record for an id.
func (c *Coordinator) Session(sessionID string) (types.Session, error) {
	h, err := c.registry.Get(sessionID)
	if err != nil {
		return types.Session{}, err
	}
	return h.Session(), nil
}
