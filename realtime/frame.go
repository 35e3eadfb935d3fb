// Package realtime implements the sblite realtime channel client. It keeps
// one logical websocket connection to the backend's realtime endpoint,
// tracks channel membership and presence, buffers outbound messages across
// disconnects, and dispatches inbound events to registered listeners.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Client events
const (
	EventJoin  = "join"
	EventLeave = "leave"
)

// Server events
const (
	EventConnected = "connected"
	EventError     = "error"
)

// Presence events flow in both directions: the client sends member-updated
// via Update, the server emits all three as notifications.
const (
	EventMemberJoined  = "member-joined"
	EventMemberLeft    = "member-left"
	EventMemberUpdated = "member-updated"
)

// Frame is the wire format for realtime messages. An empty Channel denotes
// a broadcast to all connected clients rather than a channel-scoped send.
// Origin identifies the sending connection and is used for echo suppression.
type Frame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Origin  string          `json:"origin,omitempty"`
}

// ConnectedPayload is carried by the server's connected ack frame.
type ConnectedPayload struct {
	ConnID string `json:"conn_id"`
}

// PresencePayload is carried by member-joined/member-left/member-updated
// notifications. Data is the member's opaque profile payload.
type PresencePayload struct {
	Member string          `json:"member"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ErrorPayload is carried by server error frames.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode serializes a frame to JSON bytes.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame parses JSON bytes into a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid frame format: %w", err)
	}
	return &f, nil
}

// NewJoinFrame creates a channel join request.
func NewJoinFrame(channel string) *Frame {
	return &Frame{Event: EventJoin, Channel: channel}
}

// NewLeaveFrame creates a channel leave request.
func NewLeaveFrame(channel string) *Frame {
	return &Frame{Event: EventLeave, Channel: channel}
}

// NewEventFrame creates a custom event frame. Payload is marshalled to JSON;
// a nil payload produces a frame with no payload field.
func NewEventFrame(channel, event string, payload any) (*Frame, error) {
	f := &Frame{Event: event, Channel: channel}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		f.Payload = data
	}
	return f, nil
}
