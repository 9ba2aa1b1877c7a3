package auth

import "sync"

// Session holds the admin bearer credential for one authenticated
// wallet. It replaces the frontend's module-level token variable with an
// explicit object that is set and cleared atomically; readers never
// observe a partially written session.
type Session struct {
	mu            sync.RWMutex
	token         string
	walletAddress string
	role          string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Set installs a new credential, replacing any previous one.
func (s *Session) Set(token, walletAddress, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.walletAddress = walletAddress
	s.role = role
}

// Token returns the bearer token; ok is false when no session is active.
// Satisfies backend.TokenSource.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Admin returns the authenticated wallet address and role.
func (s *Session) Admin() (walletAddress, role string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletAddress, s.role, s.token != ""
}

// Active reports whether a credential is installed.
func (s *Session) Active() bool {
	_, ok := s.Token()
	return ok
}

// Clear removes the credential (logout).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.walletAddress = ""
	s.role = ""
}
