package authclient

import "sync"

// TokenStore is the durable location of the current token. A store holds at
// most one live token at a time; writes are whole-value replacements, never
// incremental mutation, so readers always see a consistent snapshot.
//
// Only the refresh coordinator and the explicit login/logout operations
// write the store. Everything else reads.
type TokenStore interface {
	Token() string
	Set(tok string)
	Clear()
}

// InMemoryStore is the default TokenStore for long-lived Go clients
type InMemoryStore struct {
	mu  sync.RWMutex
	tok string
}

// NewInMemoryStore creates an empty token store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Token returns the current token, or "" when no session exists
func (s *InMemoryStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tok
}

// Set replaces the current token wholesale
func (s *InMemoryStore) Set(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = tok
}

// Clear destroys the session; no token fragment survives
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = ""
}
