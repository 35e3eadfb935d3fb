// auth/store.go
package auth

import "sync"

// Store persists a session across process restarts. Implementations must
// be safe for concurrent use.
type Store interface {
	Load() (*Session, error)
	Save(*Session) error
	Clear() error
}

// MemoryStore keeps the session in process memory. It is the default when
// no store is configured.
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored session, or nil.
func (s *MemoryStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, nil
}

// Save stores the session.
func (s *MemoryStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	return nil
}

// Clear removes the stored session.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
