package bridge

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrDuplicateCall is returned when a call ID is already registered to a
// live session.
var ErrDuplicateCall = errors.New("bridge: call already has a live session")

// Registry tracks live sessions by call ID. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds a session under its call ID. A call ID with a live
// session already registered is rejected; a finished session under the
// same ID is replaced.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.sessions[s.CallID()]; ok && old.State().Live() {
		return ErrDuplicateCall
	}
	r.sessions[s.CallID()] = s
	return nil
}

// Unregister removes the session for callID if it is the one given.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.CallID()]; ok && cur == s {
		delete(r.sessions, s.CallID())
	}
}

// Lookup returns the session registered for callID, if any.
func (r *Registry) Lookup(callID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Len reports the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a point-in-time view of every registered session,
// sorted by call ID.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}

// TerminateAll asks every registered session to hang up gracefully and
// waits for them to finish or the context to expire.
func (r *Registry) TerminateAll(ctx context.Context) error {
	r.mu.Lock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.Unlock()

	for _, s := range list {
		s.Hangup(ReasonShutdown)
	}
	for _, s := range list {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
