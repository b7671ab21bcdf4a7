package interview

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for lookups of unknown or removed sessions.
var ErrSessionNotFound = errors.New("interview: session not found")

// Registry owns every live Session, keyed by id. All operations are safe
// under concurrent access from multiple transport connections; a session is
// published only after it is fully constructed.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create builds a Session via construct and publishes it under a fresh id.
// The session is fully constructed before any other goroutine can look it up.
func (r *Registry) Create(construct func(id string) (*Session, error)) (*Session, error) {
	id := uuid.NewString()
	s, err := construct(id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove unpublishes a session and returns it so the caller can close it.
// In-flight reaction work holds snapshots, never registry references, so it
// finishes safely after removal.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
