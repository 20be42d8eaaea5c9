package verifier

import (
	"sync"

	"github.com/ton-vote/verifier/internal/config"
)

// Session is the endpoint configuration shared by the operations of one user session.
// Readers always get a copy; a running verification never observes later overrides.
type Session struct {
	mu        sync.RWMutex
	endpoints config.Endpoints
}

// NewSession returns a session starting from defaults.
func NewSession(defaults config.Endpoints) *Session {
	return &Session{endpoints: defaults}
}

func (s *Session) Endpoints() config.Endpoints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoints
}

// Override applies the non-empty fields of e and returns the resulting endpoints.
// The last override wins.
func (s *Session) Override(e config.Endpoints) config.Endpoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = s.endpoints.Merge(e)
	return s.endpoints
}
