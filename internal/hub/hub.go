// Package hub fans session events out to observer connections. Each
// subscription gets its own buffered channel and pump goroutine, so delivery
// to one observer is independent of every other: a slow or broken connection
// never delays the rest and never reaches back into the ingesting pipeline.
package hub

import (
	"log"
	"sync"

	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// eventBuffer is the per-subscription queue depth. An observer that falls
// this far behind is treated as dead and dropped, which keeps fan-out latency
// bounded without silently losing events for clients that keep up.
const eventBuffer = 256

// Subscription ties one observer connection to one session's event stream.
// A connection observes at most one session at a time.
type Subscription struct {
	hub       *Hub
	sessionID string
	conn      interfaces.Connection
	events    chan *types.Event
	done      chan struct{}
	stopOnce  sync.Once
}

// SessionID returns the session this subscription observes.
func (s *Subscription) SessionID() string {
	return s.sessionID
}

func (s *Subscription) stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// pump delivers queued events to the connection in FIFO order. On stop it
// drains whatever is already queued (so a final-result published just before
// the subscriber set was dropped still arrives), then exits. A write error
// drops the subscription and closes the connection.
func (s *Subscription) pump() {
	for {
		select {
		case ev := <-s.events:
			if err := s.conn.WriteJSON(ev); err != nil {
				log.Printf("Observer write failed, dropping subscription: session=%s err=%v", s.sessionID, err)
				s.hub.Unsubscribe(s)
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					if err := s.conn.WriteJSON(ev); err != nil {
						_ = s.conn.Close()
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Hub is the concurrency-safe registry of observer subscriptions per session.
// It is created empty at process start; subscriber sets are removed when a
// session publishes its final event or when every observer has unsubscribed.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Subscription]struct{}
	closed   bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscribe registers a connection as an observer of the given session and
// starts its delivery pump. Events published before the call are not
// replayed.
func (h *Hub) Subscribe(sessionID string, conn interfaces.Connection) (*Subscription, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	sub := &Subscription{
		hub:       h,
		sessionID: sessionID,
		conn:      conn,
		events:    make(chan *types.Event, eventBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*Subscription]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	go sub.pump()
	return sub, nil
}

// Unsubscribe removes a subscription and stops its pump. It is idempotent and
// safe to call from any goroutine; empty subscriber sets are removed so a
// finished session leaves nothing behind.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if subs, exists := h.sessions[sub.sessionID]; exists {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.sessions, sub.sessionID)
		}
	}
	h.mu.Unlock()

	sub.stop()
}

// Publish enqueues an event for every connection currently subscribed to the
// session. It never blocks on an observer: a subscription whose queue is full
// is dropped and its connection closed. Publishing to a session with no
// subscribers is a no-op. Final-result and session-ended events retire the
// session's subscriber set after delivery.
//
// Returns the number of observers the event was queued for.
func (h *Hub) Publish(sessionID string, ev *types.Event) int {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.sessions[sessionID]))
	for sub := range h.sessions[sessionID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range subs {
		select {
		case sub.events <- ev:
			delivered++
		default:
			log.Printf("Observer queue full, dropping subscription: session=%s", sessionID)
			h.Unsubscribe(sub)
			_ = sub.conn.Close()
		}
	}

	if ev.Type == types.EventFinalResult || ev.Type == types.EventSessionEnded {
		h.DropSession(sessionID)
	}
	return delivered
}

// DropSession retires a session's subscriber set. Each pump drains its queue
// before exiting, so events published immediately beforehand still arrive.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	subs := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	for sub := range subs {
		sub.stop()
	}
}

// SubscriberCount returns the number of observers of a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Stats returns hub-wide counters for monitoring.
func (h *Hub) Stats() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.sessions {
		total += len(subs)
	}
	return map[string]int{
		"observed_sessions": len(h.sessions),
		"subscribers":       total,
	}
}

// Shutdown stops every subscription and rejects further subscribes. Pending
// queues are drained by their pumps.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	all := h.sessions
	h.sessions = make(map[string]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, subs := range all {
		for sub := range subs {
			sub.stop()
		}
	}
}
