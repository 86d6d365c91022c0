package client

import (
	"sync"
	"time"
)

// Session holds the bearer token of a signed-in user. It is safe for
// concurrent use; the zero value is signed out.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// Set stores a token. A zero expiresAt never expires.
func (s *Session) Set(token string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
}

// Token returns the current token, or "" when signed out or expired.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	if !s.expiresAt.IsZero() && !s.clock().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// Valid reports whether the session carries a usable token.
func (s *Session) Valid() bool {
	return s.Token() != ""
}

// Clear signs the session out.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
