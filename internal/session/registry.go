package session

import "sync"

// Registry maps live connections to their sessions. The key is the
// transport's connection value; identity is reference equality. The registry
// is injected into the dispatcher and the transport so tests can construct
// and tear down a fresh one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[any]*Session
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[any]*Session),
	}
}

// Register creates the session for a connection. Called once on connect;
// calling it again for the same connection returns the existing session.
func (r *Registry) Register(conn any) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[conn]; ok {
		return s
	}

	s := &Session{}
	r.sessions[conn] = s
	return s
}

// Lookup returns the session for a connection, if one exists
func (r *Registry) Lookup(conn any) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[conn]
	return s, ok
}

// Remove deletes the session for a connection. Called on disconnect.
func (r *Registry) Remove(conn any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, conn)
}

// Count returns the number of live sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}
