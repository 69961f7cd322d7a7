// Package auth exposes the authenticated identity the pipeline consumes.
// Sign-in itself happens outside this module; the session here is fed from
// configuration (or whatever identity provider the host app wires in).
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoSession is returned when no identity has been configured.
var ErrNoSession = errors.New("no authenticated session")

// Session is a config-backed ports.TokenSource.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func NewSession(token, userID string) *Session {
	return &Session{token: strings.TrimSpace(token), userID: strings.TrimSpace(userID)}
}

func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Update replaces the session identity, e.g. after a token refresh.
func (s *Session) Update(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
	s.userID = strings.TrimSpace(userID)
}

// SignedIn reports whether a usable identity is present.
func (s *Session) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.userID != ""
}

// SignOut clears the session.
func (s *Session) SignOut() {
	s.Update("", "")
}
