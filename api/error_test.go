// api/error_test.go
package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	err := NewEntry(401, OriginRealtime, CodeSessionRequired, "sign in first")
	assert.Equal(t, "401 Unauthorized: session_required: sign in first", err.Error())

	empty := New(500)
	assert.Equal(t, "500 Internal Server Error", empty.Error())
}

func TestErrorCodes(t *testing.T) {
	err := New(400,
		ErrorEntry{Origin: OriginServer, Code: "validation_failed", Message: "bad email"},
		ErrorEntry{Origin: OriginServer, Code: "validation_failed", Message: "bad password"},
	)
	assert.Equal(t, "validation_failed", err.Code())
	assert.True(t, err.HasCode("validation_failed"))
	assert.False(t, err.HasCode("server_error"))
}

func TestDecodeEnvelope(t *testing.T) {
	body := []byte(`{"errors":[{"origin":"server","code":"invalid_token","message":"expired"}]}`)
	err := Decode(401, body)
	require.Len(t, err.Entries, 1)
	assert.Equal(t, "invalid_token", err.Code())
	assert.Equal(t, "Unauthorized", err.StatusText)
}

func TestDecodeFlatAuthShape(t *testing.T) {
	body := []byte(`{"error":"invalid_credentials","error_description":"Invalid email or password"}`)
	err := Decode(401, body)
	require.Len(t, err.Entries, 1)
	assert.Equal(t, "invalid_credentials", err.Code())
	assert.Equal(t, "Invalid email or password", err.Entries[0].Message)
}

func TestDecodeGarbageBody(t *testing.T) {
	err := Decode(502, []byte("<html>bad gateway</html>"))
	require.Len(t, err.Entries, 1)
	assert.Equal(t, "server_error", err.Code())
	assert.Equal(t, "<html>bad gateway</html>", err.Entries[0].Message)
}

func TestAs(t *testing.T) {
	apiErr := NewEntry(400, OriginEndpoint, "bad_request", "nope")
	wrapped := fmt.Errorf("request failed: %w", apiErr)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "bad_request", got.Code())

	_, ok = As(fmt.Errorf("plain error"))
	assert.False(t, ok)
}
