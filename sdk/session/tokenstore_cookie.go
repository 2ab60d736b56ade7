package session

import (
	"net/http"
	"sync"
	"time"
)

const (
	// AccessCookieName holds the access token on the browser side of the gateway.
	AccessCookieName = "accessToken"
	// RefreshCookieName holds the refresh token.
	RefreshCookieName = "refreshToken"
	// CookieMaxAge is the lifetime of both token cookies.
	CookieMaxAge = 7 * 24 * time.Hour
)

// CookieOptions controls the attributes of token cookies.
type CookieOptions struct {
	// Secure marks cookies Secure; enabled in production.
	Secure bool
	Domain string
}

// CookieTokenStore reads tokens from one request and writes them to its response.
// A store built without a ResponseWriter is read-only.
type CookieTokenStore struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	opts    CookieOptions
	access  string
	refresh string
	now     func() time.Time
}

// NewCookieTokenStore binds a store to a request/response pair.
func NewCookieTokenStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieTokenStore {
	s := &CookieTokenStore{w: w, opts: opts, now: time.Now}
	if r != nil {
		if c, err := r.Cookie(AccessCookieName); err == nil {
			s.access = c.Value
		}
		if c, err := r.Cookie(RefreshCookieName); err == nil {
			s.refresh = c.Value
		}
	}
	return s
}

func (s *CookieTokenStore) SetAccess(token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = token
	s.writeLocked(AccessCookieName, token)
}

func (s *CookieTokenStore) Access() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.access != ""
}

func (s *CookieTokenStore) SetRefresh(token string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = token
	s.writeLocked(RefreshCookieName, token)
}

func (s *CookieTokenStore) Refresh() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh, s.refresh != ""
}

func (s *CookieTokenStore) SetPair(pair TokenPair) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access, s.refresh = pair.AccessToken, pair.RefreshToken
	s.writeLocked(AccessCookieName, pair.AccessToken)
	s.writeLocked(RefreshCookieName, pair.RefreshToken)
}

func (s *CookieTokenStore) Clear() {
	s.SetPair(TokenPair{})
}

func (s *CookieTokenStore) HasAccess() bool {
	_, ok := s.Access()
	return ok
}

// writeLocked emits a Set-Cookie header. An empty value expires the cookie.
func (s *CookieTokenStore) writeLocked(name, value string) {
	if s.w == nil {
		return
	}
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if value == "" {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else {
		cookie.MaxAge = int(CookieMaxAge / time.Second)
		cookie.Expires = s.now().Add(CookieMaxAge)
	}
	http.SetCookie(s.w, cookie)
}
