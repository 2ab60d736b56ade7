package session

import "sync"

// TokenPair is the result of a token exchange.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// TokenStore persists the access and refresh tokens of one session.
//
// Implementations never panic or return errors to callers. A store without a
// usable backend behaves as an empty store and ignores writes. Tokens are opaque:
// no expiry is checked locally, the server decides with a 401.
type TokenStore interface {
	SetAccess(token string)
	Access() (string, bool)
	SetRefresh(token string)
	Refresh() (string, bool)
	// SetPair stores both tokens together.
	SetPair(pair TokenPair)
	// Clear removes both tokens together.
	Clear()
	HasAccess() bool
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) SetAccess(token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.access = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Access() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, s.access != ""
}

func (s *MemoryTokenStore) SetRefresh(token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.refresh = token
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Refresh() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh, s.refresh != ""
}

func (s *MemoryTokenStore) SetPair(pair TokenPair) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.access = pair.AccessToken
	s.refresh = pair.RefreshToken
	s.mu.Unlock()
}

func (s *MemoryTokenStore) Clear() {
	s.SetPair(TokenPair{})
}

func (s *MemoryTokenStore) HasAccess() bool {
	_, ok := s.Access()
	return ok
}
