// Package registry maps Discord channels to opencode session ids. It is the
// single source of truth for which channel talks to which session.
package registry

import (
	"errors"
	"sync"
)

// ErrSessionAlreadyActive is returned by Bind when the channel already has a
// session. The existing binding is left untouched.
var ErrSessionAlreadyActive = errors.New("a session is already active in this channel")

// Binding associates a channel with a backend session.
type Binding struct {
	ChannelID string
	SessionID string
}

// Registry is an in-memory channel→session map. All state is lost on restart
// by design. Safe for concurrent use; Bind is an atomic check-and-set so two
// concurrent starts on the same channel cannot both succeed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]string
	order    []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]string)}
}

// Bind associates channelID with sessionID. Returns ErrSessionAlreadyActive
// if a binding exists; the caller must Unbind first.
func (r *Registry) Bind(channelID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[channelID]; exists {
		return ErrSessionAlreadyActive
	}
	r.sessions[channelID] = sessionID
	r.order = append(r.order, channelID)
	return nil
}

// Unbind removes the binding for channelID and returns the session id that
// was bound, if any.
func (r *Registry) Unbind(channelID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.sessions[channelID]
	if !ok {
		return "", false
	}
	delete(r.sessions, channelID)
	for i, id := range r.order {
		if id == channelID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return sessionID, true
}

// Lookup returns the session bound to channelID, if any.
func (r *Registry) Lookup(channelID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sessionID, ok := r.sessions[channelID]
	return sessionID, ok
}

// All returns every binding in insertion order.
func (r *Registry) All() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	bindings := make([]Binding, 0, len(r.order))
	for _, channelID := range r.order {
		bindings = append(bindings, Binding{ChannelID: channelID, SessionID: r.sessions[channelID]})
	}
	return bindings
}

// Len returns the number of active bindings.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
