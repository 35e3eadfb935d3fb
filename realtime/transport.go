// realtime/transport.go
package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CloseSessionExpired is the close code the server sends when it invalidates
// the connection's session. The client stops reconnecting when it sees it.
const CloseSessionExpired = 4001

// Conn is an open bidirectional transport connection.
type Conn interface {
	// Read blocks until the next inbound message or a connection error.
	Read() ([]byte, error)
	Write(data []byte) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// Dialer opens transport connections. The production implementation uses
// gorilla/websocket; tests substitute scripted fakes.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header, timeout time.Duration) (Conn, error)
}

// CloseError reports a transport close with a status code. The websocket
// implementation translates gorilla close errors into this type.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("transport closed (%d): %s", e.Code, e.Reason)
}

// closeCode extracts a close status code from a transport error, or 0.
func closeCode(err error) int {
	if ce, ok := err.(*CloseError); ok {
		return ce.Code
	}
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code
	}
	return 0
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string, header http.Header, timeout time.Duration) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &wsConn{ws: ws}, nil
}

// wsConn adapts a gorilla connection to the Conn interface. Reads come from
// a single goroutine; writes are serialized with a mutex since sends can
// originate from multiple call sites.
type wsConn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func (c *wsConn) Read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if ce, ok := err.(*websocket.CloseError); ok {
			return nil, &CloseError{Code: ce.Code, Reason: ce.Text}
		}
		return nil, err
	}
	return data, nil
}

func (c *wsConn) Write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}
