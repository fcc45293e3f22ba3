package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session carries the credentials every transport needs: the backend
// base URL and the bearer token. It replaces the ambient global auth
// state of earlier clients; constructors take a *Session explicitly.
//
// The token is parsed without signature verification (the client holds
// no key) purely to expose its subject and expiry.
type Session struct {
	baseURL string
	token   string
	userID  string
	expiry  time.Time
}

func NewSession(baseURL, token string) (*Session, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("session: base URL is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("session: token is required")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("session: malformed token: %w", err)
	}

	s := &Session{
		baseURL: baseURL,
		token:   token,
	}

	if sub, err := claims.GetSubject(); err == nil {
		s.userID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.expiry = exp.Time
	}

	return s, nil
}

func (s *Session) BaseURL() string { return s.baseURL }
func (s *Session) Token() string   { return s.token }
func (s *Session) UserID() string  { return s.userID }

// Expired reports whether the token's exp claim has passed. Tokens
// without an exp claim never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	if s.expiry.IsZero() {
		return false
	}
	return now.After(s.expiry)
}
