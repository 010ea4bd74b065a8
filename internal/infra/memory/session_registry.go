package memory

import (
	"sync"

	"quiz-session-service/internal/app"
)

// SessionRegistry is an in-memory implementation of app.SessionRegistry.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*app.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*app.Session),
	}
}

// Acquire returns the live session for key, creating it if needed, and
// registers one more holder.
func (r *SessionRegistry) Acquire(key string, create func() *app.Session) *app.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[key]
	if !ok {
		session = create()
		r.sessions[key] = session
	}
	session.Retain()
	return session
}

func (r *SessionRegistry) Get(key string) (*app.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[key]
	return session, ok
}

// Release drops one holder and forgets the session once nobody holds it.
func (r *SessionRegistry) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[key]
	if !ok {
		return
	}
	session.Release()
	if session.IsIdle() {
		delete(r.sessions, key)
	}
}

// Len reports how many sessions are live.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
