// Package sblite is the Go client for an sblite backend. A Client is the
// composition root: it constructs one endpoint, auth, storage, and realtime
// manager for its lifetime and wires them together. There are no lazily
// created singletons; consumers receive the managers by reference.
package sblite

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/markb/sblite-go/auth"
	"github.com/markb/sblite-go/endpoint"
	"github.com/markb/sblite-go/realtime"
	"github.com/markb/sblite-go/storage"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend's HTTP base URL, e.g. "http://localhost:8080".
	BaseURL string
	// APIKey is the project API key sent with every request.
	APIKey string

	// SessionStore persists the session. Nil keeps it in memory.
	SessionStore auth.Store
	// HTTPClient overrides the HTTP client used for endpoint requests.
	HTTPClient *http.Client
	// Realtime configures the realtime channel client. The zero value
	// takes realtime.DefaultConfig.
	Realtime *realtime.Config
}

// Client is an sblite API client.
type Client struct {
	Endpoint *endpoint.Client
	Auth     *auth.Manager
	Storage  *storage.Client
	Realtime *realtime.Client
}

// New creates a client. The auth manager doubles as the endpoint token
// source and as the realtime session gate.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}

	ep := endpoint.New(cfg.BaseURL, cfg.APIKey)
	if cfg.HTTPClient != nil {
		ep.SetHTTPClient(cfg.HTTPClient)
	}

	am, err := auth.NewManager(ep, cfg.SessionStore)
	if err != nil {
		return nil, err
	}
	ep.SetTokenSource(am)

	rtCfg := realtime.DefaultConfig()
	if cfg.Realtime != nil {
		rtCfg = *cfg.Realtime
	}
	wsURL, err := realtimeURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		Endpoint: ep,
		Auth:     am,
		Storage:  storage.New(ep),
		Realtime: realtime.New(wsURL, cfg.APIKey, am, rtCfg),
	}, nil
}

// Close shuts down the realtime connection. The client cannot be reused
// afterwards.
func (c *Client) Close() error {
	return c.Realtime.Disconnect()
}

// realtimeURL derives the websocket URL from the HTTP base URL.
func realtimeURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime/v1"
	return u.String(), nil
}
