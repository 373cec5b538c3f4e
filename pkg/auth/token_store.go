// Package auth persists the session token between runs and answers
// token-expiry questions locally, without a network round trip.
package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"

	"github.com/taskdeck/taskdeck/pkg/observability"
)

// TokenStore holds the backend-issued JWT and persists it to a file so the
// session survives restarts. It implements client.TokenSource.
type TokenStore struct {
	path   string
	logger observability.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store backed by the file at path. The file is not
// read until Load is called.
func NewTokenStore(path string, logger observability.Logger) *TokenStore {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &TokenStore{path: path, logger: logger}
}

// DefaultPath returns the conventional token location under the user's
// config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(dir, "taskdeck", "token"), nil
}

// Load reads the persisted token. A missing file is not an error; it just
// means there is no session.
func (s *TokenStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read token file")
	}

	s.mu.Lock()
	s.token = strings.TrimSpace(string(raw))
	s.mu.Unlock()
	return nil
}

// Token returns the current token, or "" when signed out.
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Save stores the token in memory and on disk with owner-only permissions.
func (s *TokenStore) Save(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return errors.Wrap(err, "write token file")
	}
	return nil
}

// Clear forgets the session in memory and on disk.
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}

// ExpiresAt returns the token's expiry claim. ok is false when there is no
// token or it carries no expiry. The signature is NOT verified here; only the
// backend can do that, this is purely a local staleness check.
func (s *TokenStore) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		s.logger.Debug("token is not a parseable JWT", map[string]interface{}{"error": err.Error()})
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// StaticToken is a fixed-value token source for tests and one-off scripts.
type StaticToken string

// Token returns the fixed token value.
func (s StaticToken) Token() string {
	return string(s)
}

// Valid reports whether a token is present and, when it carries an expiry,
// not yet expired.
func (s *TokenStore) Valid() bool {
	if s.Token() == "" {
		return false
	}
	expiry, ok := s.ExpiresAt()
	if !ok {
		return true
	}
	return time.Now().Before(expiry)
}
