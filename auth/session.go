// Package auth manages sessions for sblite-go: sign-in/sign-out round trips
// against the backend auth API, access-token inspection, and pluggable
// local session stores. The realtime client consults the Provider interface
// as its session gate; it never mutates session state.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated user carried by a session.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Role     string         `json:"role"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Session holds the tokens and user for an authenticated session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token has passed its expiry.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Claims returns the access token's claims without verifying the
// signature. Signature verification is the backend's job; the client only
// inspects expiry and identity.
func (s *Session) Claims() (jwt.MapClaims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(s.AccessToken, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

// SessionFromToken builds a Session from raw tokens, deriving expiry and
// user identity from the access token's claims.
func SessionFromToken(accessToken, refreshToken string) (*Session, error) {
	s := &Session{AccessToken: accessToken, RefreshToken: refreshToken}
	claims, err := s.Claims()
	if err != nil {
		return nil, err
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	if sub, _ := claims["sub"].(string); sub != "" {
		s.User.ID = sub
	}
	if email, _ := claims["email"].(string); email != "" {
		s.User.Email = email
	}
	if role, _ := claims["role"].(string); role != "" {
		s.User.Role = role
	}
	return s, nil
}

// Provider exposes the current session to collaborators. A nil result
// means no active session.
type Provider interface {
	CurrentSession() *Session
}
