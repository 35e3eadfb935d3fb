// auth/manager.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/markb/sblite-go/endpoint"
	"github.com/markb/sblite-go/internal/log"
)

// Manager signs users in and out against the backend auth API and holds
// the current session. It implements Provider for the realtime session
// gate and endpoint.TokenSource for request authorization.
type Manager struct {
	ep    *endpoint.Client
	store Store

	mu      sync.Mutex
	session *Session
}

// NewManager creates an auth manager. A nil store defaults to an in-memory
// store. Any previously persisted session is loaded immediately.
func NewManager(ep *endpoint.Client, store Store) (*Manager, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{ep: ep, store: store}

	session, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load persisted session: %w", err)
	}
	m.session = session
	return m, nil
}

// tokenResponse is the backend's token grant response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// SignIn exchanges credentials for a session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	data, err := m.ep.Post(ctx, "/auth/v1/token?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return m.adoptTokenResponse(data)
}

// Refresh exchanges the refresh token for a new session.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	current := m.session
	m.mu.Unlock()
	if current == nil || current.RefreshToken == "" {
		return nil, fmt.Errorf("no session to refresh")
	}

	data, err := m.ep.Post(ctx, "/auth/v1/token?grant_type=refresh_token", map[string]string{
		"refresh_token": current.RefreshToken,
	})
	if err != nil {
		return nil, err
	}
	return m.adoptTokenResponse(data)
}

// SignOut revokes the session on the backend and clears local state. The
// local session is cleared even when revocation fails.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	// Revoke before clearing: the logout endpoint requires the bearer
	// token, and clearing first would strip it from the request.
	if session != nil {
		if _, err := m.ep.Post(ctx, "/auth/v1/logout", nil); err != nil {
			log.Warn("auth: server-side logout failed", "error", err.Error())
		}
	}

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
	if err := m.store.Clear(); err != nil {
		return fmt.Errorf("clear session store: %w", err)
	}
	return nil
}

// CurrentSession returns the active session, or nil when signed out or the
// session has expired.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.Expired() {
		return nil
	}
	return m.session
}

// CurrentToken implements endpoint.TokenSource.
func (m *Manager) CurrentToken() string {
	if s := m.CurrentSession(); s != nil {
		return s.AccessToken
	}
	return ""
}

func (m *Manager) adoptTokenResponse(data json.RawMessage) (*Session, error) {
	var resp tokenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	session := &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
	}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	} else if derived, err := SessionFromToken(resp.AccessToken, resp.RefreshToken); err == nil {
		session.ExpiresAt = derived.ExpiresAt
	}
	if session.User.ID == "" {
		if derived, err := SessionFromToken(resp.AccessToken, resp.RefreshToken); err == nil {
			session.User = derived.User
		}
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	if err := m.store.Save(session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return session, nil
}
