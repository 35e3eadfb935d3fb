// realtime/config.go
package realtime

import "time"

// Config holds realtime client configuration.
type Config struct {
	// AutoJoinChannels replays join requests for every channel in the
	// membership set after each successful (re)connection.
	AutoJoinChannels bool

	// EchoMessages controls whether self-originated custom events are
	// delivered back to this client's listeners. Presence notifications
	// are always delivered regardless of origin.
	EchoMessages bool

	// BufferMessages buffers sends issued while the connection is
	// unusable; when false such sends fail with not_connected.
	BufferMessages bool

	// EnforceSession refuses to open a connection unless the session
	// provider reports an active session.
	EnforceSession bool

	// ReconnectionDelay is the initial delay before a reconnect attempt.
	// The delay grows exponentially up to MaxReconnectDelay and resets on
	// a successful connection.
	ReconnectionDelay time.Duration
	MaxReconnectDelay time.Duration

	// Timeout bounds a single connection attempt. An attempt that does
	// not resolve in time is treated as a failure and feeds the normal
	// reconnect path.
	Timeout time.Duration

	// MaxBufferSize bounds the outbound buffer. 0 means unbounded, which
	// is the default; a bounded buffer applies the Overflow policy.
	MaxBufferSize int
	Overflow      Overflow
}

// DefaultConfig returns the default realtime configuration.
func DefaultConfig() Config {
	return Config{
		AutoJoinChannels:  true,
		EchoMessages:      true,
		BufferMessages:    true,
		ReconnectionDelay: time.Second,
		MaxReconnectDelay: 30 * time.Second,
		Timeout:           20 * time.Second,
	}
}
