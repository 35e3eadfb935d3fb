// Package api defines the result envelope shared by every sblite-go manager.
// All public operations return (data, error) where a non-nil error is always
// an *api.Error carrying an HTTP-style status and a list of error entries,
// matching the envelope the backend itself produces.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Manager origins used in error entries.
const (
	OriginAuth     = "auth"
	OriginEndpoint = "endpoint"
	OriginStorage  = "storage"
	OriginRealtime = "realtime"
	OriginServer   = "server"
)

// Error codes raised by the client itself. Backend responses carry their
// own codes and are passed through unchanged.
const (
	CodeSessionRequired   = "session_required"
	CodeSessionExpired    = "session_expired"
	CodeNotConnected      = "not_connected"
	CodeConnectionTimeout = "connection_timeout"
	CodeTransportError    = "transport_error"
	CodeListenerError     = "listener_error"
	CodeBufferOverflow    = "buffer_overflow"
)

// ErrorEntry is a single error item inside an Error envelope.
type ErrorEntry struct {
	Origin  string         `json:"origin"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error is the uniform error envelope. Status and StatusText follow HTTP
// conventions even for conditions raised locally by the realtime client.
type Error struct {
	Status     int          `json:"status"`
	StatusText string       `json:"statusText"`
	Entries    []ErrorEntry `json:"errors"`
}

// New creates an Error with the given status and entries. StatusText is
// derived from the status code.
func New(status int, entries ...ErrorEntry) *Error {
	return &Error{
		Status:     status,
		StatusText: http.StatusText(status),
		Entries:    entries,
	}
}

// NewEntry creates an Error with a single entry.
func NewEntry(status int, origin, code, message string) *Error {
	return New(status, ErrorEntry{Origin: origin, Code: code, Message: message})
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Entries) == 0 {
		return fmt.Sprintf("%d %s", e.Status, e.StatusText)
	}
	first := e.Entries[0]
	return fmt.Sprintf("%d %s: %s: %s", e.Status, e.StatusText, first.Code, first.Message)
}

// Code returns the code of the first entry, or "" if there are none.
func (e *Error) Code() string {
	if len(e.Entries) == 0 {
		return ""
	}
	return e.Entries[0].Code
}

// HasCode reports whether any entry carries the given code.
func (e *Error) HasCode(code string) bool {
	for _, entry := range e.Entries {
		if entry.Code == code {
			return true
		}
	}
	return false
}

// As unwraps err into an *Error if possible.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// errorResponse is the backend's wire shape for error bodies.
type errorResponse struct {
	Errors []ErrorEntry `json:"errors"`

	// Flat shape used by auth endpoints.
	Code    string `json:"error"`
	Message string `json:"error_description"`
	Msg     string `json:"msg"`
}

// Decode builds an Error from an HTTP error response body. Bodies that are
// not valid envelopes produce a single server-origin entry with the raw
// body as the message.
func Decode(status int, body []byte) *Error {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		if len(resp.Errors) > 0 {
			return New(status, resp.Errors...)
		}
		if resp.Code != "" {
			message := resp.Message
			if message == "" {
				message = resp.Msg
			}
			return NewEntry(status, OriginServer, resp.Code, message)
		}
	}
	return NewEntry(status, OriginServer, "server_error", string(body))
}
