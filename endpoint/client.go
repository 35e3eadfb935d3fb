// Package endpoint provides thin HTTP request helpers for the sblite
// backend. Every request carries the project API key; when a token source
// is installed the current session token is attached as a bearer token.
// Error responses are decoded into the shared api.Error envelope.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markb/sblite-go/api"
)

// TokenSource supplies the current session's access token, or "" when no
// session is active.
type TokenSource interface {
	CurrentToken() string
}

// Client issues requests against the backend REST surface.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	tokens  TokenSource
}

// New creates an endpoint client for the given base URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetTokenSource installs the session token source. The composition root
// wires the auth manager here after both are constructed.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.http = hc
	}
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the configured project API key.
func (c *Client) APIKey() string {
	return c.apiKey
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodDelete, path, nil)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	header := http.Header{}
	if body != nil {
		header.Set("Content-Type", "application/json")
	}
	return c.Do(ctx, method, path, reader, header)
}

// Do issues a request with an arbitrary body and headers. Callers that
// upload non-JSON payloads (storage) use this directly.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, header http.Header) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if c.tokens != nil {
		if token := c.tokens.CurrentToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, api.NewEntry(http.StatusServiceUnavailable, api.OriginEndpoint, api.CodeTransportError, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, api.Decode(resp.StatusCode, data)
	}
	return data, nil
}
