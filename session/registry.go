package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateSession is returned by Put for an id already stored.
	ErrDuplicateSession = errors.New("duplicate session id")
	// ErrSessionNotFound is returned by Lookup for an unknown id.
	ErrSessionNotFound = errors.New("session not found")
)

// Registry stores sessions for the lifetime of the process. There is no
// update or delete.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

// Put stores s under s.ID.
func (r *Registry) Put(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, s.ID)
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session or false when absent.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Lookup is Get with ErrSessionNotFound for a miss.
func (r *Registry) Lookup(id string) (*Session, error) {
	s, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the stored ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
