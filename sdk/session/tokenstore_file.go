package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FileTokenStore persists the token pair as a JSON document on disk.
// The directory is created with mode 0700 and the file written with mode 0600.
type FileTokenStore struct {
	mu     sync.Mutex
	path   string
	loaded bool
	pair   TokenPair
}

// NewFileTokenStore returns a store backed by path. An empty path yields a store
// that keeps tokens in memory only.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: strings.TrimSpace(path)}
}

// DefaultTokenPath returns the per-user token file location, or "" when the
// user config directory cannot be resolved.
func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, "assessly", "session.json")
}

// Path returns the backing file path.
func (s *FileTokenStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *FileTokenStore) SetAccess(token string) {
	s.update(func(p *TokenPair) { p.AccessToken = token })
}

func (s *FileTokenStore) Access() (string, bool) {
	pair := s.snapshot()
	return pair.AccessToken, pair.AccessToken != ""
}

func (s *FileTokenStore) SetRefresh(token string) {
	s.update(func(p *TokenPair) { p.RefreshToken = token })
}

func (s *FileTokenStore) Refresh() (string, bool) {
	pair := s.snapshot()
	return pair.RefreshToken, pair.RefreshToken != ""
}

func (s *FileTokenStore) SetPair(pair TokenPair) {
	s.update(func(p *TokenPair) { *p = pair })
}

func (s *FileTokenStore) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.pair = TokenPair{}
	if s.path == "" {
		return
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WithError(err).Warnf("token file store: remove %s failed", s.path)
	}
}

func (s *FileTokenStore) HasAccess() bool {
	_, ok := s.Access()
	return ok
}

func (s *FileTokenStore) snapshot() TokenPair {
	if s == nil {
		return TokenPair{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	return s.pair
}

func (s *FileTokenStore) update(fn func(*TokenPair)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	fn(&s.pair)
	s.persistLocked()
}

func (s *FileTokenStore) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).Warnf("token file store: read %s failed", s.path)
		}
		return
	}
	var pair TokenPair
	if err = json.Unmarshal(data, &pair); err != nil {
		log.WithError(err).Warnf("token file store: %s is not a valid token document", s.path)
		return
	}
	s.pair = pair
}

func (s *FileTokenStore) persistLocked() {
	if s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		log.WithError(err).Warn("token file store: create dir failed")
		return
	}
	raw, err := json.MarshalIndent(s.pair, "", "  ")
	if err != nil {
		log.WithError(err).Warn("token file store: marshal failed")
		return
	}
	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, raw, 0o600); err != nil {
		log.WithError(err).Warn("token file store: write failed")
		return
	}
	if err = os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		log.WithError(err).Warn("token file store: rename failed")
	}
}
