// endpoint/client_test.go
package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/sblite-go/api"
)

type staticTokens string

func (s staticTokens) CurrentToken() string { return string(s) }

func newTestBackend(t *testing.T) (*httptest.Server, chi.Router) {
	t.Helper()
	router := chi.NewRouter()
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, router
}

func TestRequestHeaders(t *testing.T) {
	srv, router := newTestBackend(t)
	var got http.Header
	router.Get("/rest/v1/items", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`[]`))
	})

	c := New(srv.URL+"/", "anon-key")
	c.SetTokenSource(staticTokens("session-token"))

	data, err := c.Get(context.Background(), "/rest/v1/items")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	assert.Equal(t, "anon-key", got.Get("apikey"))
	assert.Equal(t, "Bearer session-token", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
}

func TestNoBearerWithoutSession(t *testing.T) {
	srv, router := newTestBackend(t)
	var got http.Header
	router.Get("/rest/v1/items", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`[]`))
	})

	c := New(srv.URL, "anon-key")
	c.SetTokenSource(staticTokens(""))

	_, err := c.Get(context.Background(), "/rest/v1/items")
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
}

func TestPostBody(t *testing.T) {
	srv, router := newTestBackend(t)
	router.Post("/rest/v1/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	})

	c := New(srv.URL, "anon-key")
	data, err := c.Post(context.Background(), "/rest/v1/items", map[string]string{"name": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(data))
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	srv, router := newTestBackend(t)
	router.Get("/rest/v1/items", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"origin":"server","code":"invalid_token","message":"expired"}]}`))
	})

	c := New(srv.URL, "anon-key")
	_, err := c.Get(context.Background(), "/rest/v1/items")
	require.Error(t, err)

	apiErr, ok := api.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, apiErr.HasCode("invalid_token"))
}

func TestNetworkErrorIsTransportError(t *testing.T) {
	srv, _ := newTestBackend(t)
	c := New(srv.URL, "anon-key")
	srv.Close()

	_, err := c.Get(context.Background(), "/rest/v1/items")
	require.Error(t, err)

	apiErr, ok := api.As(err)
	require.True(t, ok)
	assert.True(t, apiErr.HasCode(api.CodeTransportError))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}
