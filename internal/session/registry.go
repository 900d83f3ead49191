package session

import (
	"log"
	"sync"
	"time"

	"lectern/internal/aggregate"
	"lectern/pkg/types"
)

// validNext defines the lifecycle state machine. running -> running is
// handled separately as an idempotent no-op; terminal states permit nothing.
var validNext = map[string][]string{
	types.StateCreated:    {types.StateRunning, types.StateAbandoned},
	types.StateRunning:    {types.StateCompleting, types.StateAbandoned},
	types.StateCompleting: {types.StateCompleted, types.StateAbandoned},
	types.StateCompleted:  {},
	types.StateAbandoned:  {},
}

// Metadata carries optional descriptive fields supplied when a session is
// created.
type Metadata struct {
	Subject     string
	Institution string
	Duration    int
}

// Handle is the single logical owner of one live session. All mutations of
// the session's state and aggregate go through the handle's mutex, which
// linearizes operations on one session while leaving other sessions fully
// parallel.
type Handle struct {
	mu   sync.Mutex
	sess *types.Session
	agg  *aggregate.Aggregator
}

// Session returns a copy of the session record.
func (h *Handle) Session() types.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.sess
}

// State returns the session's current lifecycle state.
func (h *Handle) State() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.State
}

// Transition moves the session to a new lifecycle state. A second start on an
// already-running session is an idempotent no-op success; any other request
// not permitted by the state machine fails with ErrInvalidTransition and
// mutates nothing.
func (h *Handle) Transition(to string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	from := h.sess.State
	if from == types.StateRunning && to == types.StateRunning {
		return nil
	}

	allowed := false
	for _, next := range validNext[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrInvalidTransition
	}

	h.sess.State = to
	now := time.Now()
	switch to {
	case types.StateRunning:
		if h.sess.StartedAt == nil {
			h.sess.StartedAt = &now
		}
	case types.StateCompleted, types.StateAbandoned:
		h.sess.EndedAt = &now
	}
	return nil
}

// Ingest folds a sample into the session's aggregate and returns the updated
// snapshot. Valid only while the session is running; the state check and the
// aggregate mutation happen under the same lock, so a racing completion can
// never interleave with a sample update.
func (h *Handle) Ingest(sample types.MetricSample) (*types.AggregatedSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sess.State != types.StateRunning {
		return nil, ErrSessionNotRunning
	}
	return h.agg.Ingest(sample)
}

// IngestThen behaves like Ingest but additionally invokes fn with the updated
// snapshot before releasing the session's lock. Publishing live updates from
// fn guarantees observers see them in the exact order samples were accepted.
func (h *Handle) IngestThen(sample types.MetricSample, fn func(*types.AggregatedSnapshot)) (*types.AggregatedSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.sess.State != types.StateRunning {
		return nil, ErrSessionNotRunning
	}
	snap, err := h.agg.Ingest(sample)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		fn(snap)
	}
	return snap, nil
}

// Snapshot returns the session's current aggregate.
func (h *Handle) Snapshot() *types.AggregatedSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agg.Snapshot()
}

// Finalize freezes the session's aggregate and returns the final snapshot.
// Once finalized, every later Ingest fails, so callers may read the returned
// snapshot without holding the session lock.
func (h *Handle) Finalize() *types.AggregatedSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agg.Finalize()
}

// SampleCount returns the number of samples accepted so far.
func (h *Handle) SampleCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.agg.Count()
}

// Registry is the concurrency-safe store of live sessions and their
// aggregators. Lookups and removals across different sessions never block
// each other; per-session ordering is the Handle's job.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Handle
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Handle),
	}
}

// GetOrCreate returns the handle for the given session id, creating the
// session in the created state if it does not exist. The second return value
// reports whether a new session was created.
func (r *Registry) GetOrCreate(id string, meta Metadata) (*Handle, bool, error) {
	if !types.IsValidSessionID(id) {
		return nil, false, ErrInvalidSessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, exists := r.sessions[id]; exists {
		return h, false, nil
	}

	h := &Handle{
		sess: &types.Session{
			ID:          id,
			Subject:     meta.Subject,
			Institution: meta.Institution,
			Duration:    meta.Duration,
			State:       types.StateCreated,
			CreatedAt:   time.Now(),
		},
		agg: aggregate.New(id),
	}
	r.sessions[id] = h

	log.Printf("Created session: id=%s subject=%q", id, meta.Subject)
	return h, true, nil
}

// Get returns the handle for a known session id.
func (r *Registry) Get(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return h, nil
}

// Transition moves a session to a new lifecycle state by id.
func (r *Registry) Transition(id, to string) error {
	h, err := r.Get(id)
	if err != nil {
		return err
	}
	return h.Transition(to)
}

// Remove evicts a session from the registry. Removing an unknown id is a
// no-op; eviction is only called after a session reached a terminal state.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// List returns copies of all live session records.
func (r *Registry) List() []types.Session {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sessions := make([]types.Session, 0, len(handles))
	for _, h := range handles {
		sessions = append(sessions, h.Session())
	}
	return sessions
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
