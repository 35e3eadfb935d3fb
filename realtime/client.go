// realtime/client.go
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/markb/sblite-go/api"
	"github.com/markb/sblite-go/auth"
	"github.com/markb/sblite-go/internal/log"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateClosed is terminal: entered only by Disconnect. A new client
	// is required to connect again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is the realtime channel client. A client owns at most one active
// transport connection; channel membership and buffered sends survive
// reconnects and are replayed after each successful connection.
type Client struct {
	cfg     Config
	url     string
	apiKey  string
	session auth.Provider
	dialer  Dialer
	ref     string // short instance ref for log correlation

	listeners *listenerSet
	registry  *channelRegistry
	queue     *sendQueue

	mu     sync.Mutex
	state  State
	conn   Conn
	connID string // assigned by the server on each successful connection
	gen    int    // connection generation, guards stale read loops
	retry  *backoff.ExponentialBackOff
	timer  *time.Timer
}

// New creates a realtime client for the given websocket URL and API key.
// session may be nil when the deployment allows anonymous realtime access
// and EnforceSession is off. Zero duration config fields fall back to the
// defaults from DefaultConfig.
func New(wsURL, apiKey string, session auth.Provider, cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.ReconnectionDelay <= 0 {
		cfg.ReconnectionDelay = defaults.ReconnectionDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = cfg.ReconnectionDelay
	retry.MaxInterval = cfg.MaxReconnectDelay
	retry.Reset()

	return &Client{
		cfg:       cfg,
		url:       wsURL,
		apiKey:    apiKey,
		session:   session,
		dialer:    wsDialer{},
		ref:       uuid.New().String()[:8],
		listeners: newListenerSet(),
		registry:  newChannelRegistry(),
		queue:     newSendQueue(cfg.MaxBufferSize, cfg.Overflow),
		retry:     retry,
	}
}

// Connect opens the realtime connection. The attempt itself runs in the
// background: failures and timeouts feed the reconnect loop and are
// reported to OnError listeners. Connect fails synchronously only when the
// session gate refuses the connection or the client is closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return errClosed()
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	if c.cfg.EnforceSession && c.currentSession() == nil {
		c.mu.Unlock()
		return errSessionRequired()
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.attempt(ctx)
	return nil
}

// Disconnect closes the connection and moves the client to its terminal
// Closed state. Any pending reconnect timer is cancelled and the outbound
// buffer is discarded; the client never reconnects afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.connID = ""
	c.queue.clear()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	log.Debug("realtime: client closed", "client", c.ref)
	c.listeners.emitDisconnect(nil)
	return nil
}

// Join adds a channel to the membership set and, when connected, sends a
// join frame. Joining an already-joined channel re-sends the join frame:
// the server is the source of truth for confirmed membership.
func (c *Client) Join(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return errClosed()
	}
	c.registry.add(name)
	if c.state == StateConnected {
		return c.writeLocked(NewJoinFrame(name))
	}
	return nil
}

// Leave removes a channel from the membership set and, when connected,
// sends a leave frame. Leaving a channel that was never joined is a no-op.
func (c *Client) Leave(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return errClosed()
	}
	if !c.registry.remove(name) {
		return nil
	}
	if c.state == StateConnected {
		return c.writeLocked(NewLeaveFrame(name))
	}
	return nil
}

// Send transmits a custom event to a channel. An empty channel name
// broadcasts to all connected clients. While the connection is unusable
// the envelope is buffered when BufferMessages is on, and otherwise fails
// with not_connected.
func (c *Client) Send(channel, event string, payload any) error {
	f, err := NewEventFrame(channel, event, payload)
	if err != nil {
		return err
	}
	return c.deliver(f)
}

// Broadcast transmits a custom event to all connected clients.
func (c *Client) Broadcast(event string, payload any) error {
	return c.Send("", event, payload)
}

// Update broadcasts this client's profile payload as a member-updated
// event to every channel currently in the membership set. It follows the
// same buffering rule as Send.
func (c *Client) Update(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal profile payload: %w", err)
	}
	for _, name := range c.registry.channels() {
		f := &Frame{Event: EventMemberUpdated, Channel: name, Payload: data}
		if err := c.deliver(f); err != nil {
			return err
		}
	}
	return nil
}

// On registers a listener for a custom event. Listeners for the same event
// run synchronously in registration order on the goroutine that received
// the frame.
func (c *Client) On(event string, h Handler) {
	c.listeners.on(event, h)
}

// OnJoin registers a listener for member-joined notifications.
func (c *Client) OnJoin(h PresenceHandler) {
	c.listeners.onPresence(presenceJoin, h)
}

// OnLeave registers a listener for member-left notifications.
func (c *Client) OnLeave(h PresenceHandler) {
	c.listeners.onPresence(presenceLeave, h)
}

// OnUpdate registers a listener for member-updated notifications.
func (c *Client) OnUpdate(h PresenceHandler) {
	c.listeners.onPresence(presenceUpdate, h)
}

// OnError registers a listener for connection conditions: recoverable ones
// (connection_timeout, transport_error) as the reconnect loop handles
// them, and non-recoverable ones (session_required, session_expired).
func (c *Client) OnError(h ErrorHandler) {
	c.listeners.addError(h)
}

// OnConnect registers a listener invoked with the server-assigned
// connection ID after every successful (re)connection, once the rejoin and
// flush phases completed.
func (c *Client) OnConnect(h func(connID string)) {
	c.listeners.addConnect(h)
}

// OnDisconnect registers a listener invoked when the connection drops or
// the client is closed. err is nil for an explicit Disconnect.
func (c *Client) OnDisconnect(h func(err error)) {
	c.listeners.addDisconnect(h)
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID returns the server-assigned connection identifier, or ""
// while not connected.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Channels returns the membership set in join order.
func (c *Client) Channels() []string {
	return c.registry.channels()
}

// Presence returns a snapshot of the known presence state for a channel,
// keyed by member connection ID.
func (c *Client) Presence(channel string) map[string]json.RawMessage {
	return c.registry.presenceSnapshot(channel)
}

// Buffered returns the number of envelopes waiting in the outbound buffer.
func (c *Client) Buffered() int {
	return c.queue.len()
}

// deliver transmits a frame immediately when connected, otherwise buffers
// or rejects it per configuration.
func (c *Client) deliver(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state == StateClosed:
		return errClosed()
	case c.state == StateConnected:
		return c.writeLocked(f)
	case c.cfg.BufferMessages:
		return c.queue.push(f)
	default:
		return api.NewEntry(http.StatusBadRequest, api.OriginRealtime, api.CodeNotConnected,
			"realtime connection is not open and message buffering is disabled")
	}
}

// writeLocked encodes and writes a frame on the current connection. The
// caller must hold c.mu with state Connected. The frame origin is stamped
// with the live connection ID at transmission time, so buffered envelopes
// carry the identity of the connection that flushes them.
func (c *Client) writeLocked(f *Frame) error {
	if f.Origin == "" {
		f.Origin = c.connID
	}
	data, err := f.Encode()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := c.conn.Write(data); err != nil {
		return api.NewEntry(http.StatusServiceUnavailable, api.OriginRealtime,
			api.CodeTransportError, err.Error())
	}
	return nil
}

// attempt performs a single connection attempt. It runs on its own
// goroutine, entered either from Connect or from the reconnect timer.
func (c *Client) attempt(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	var token string
	if s := c.currentSession(); s != nil {
		token = s.AccessToken
	} else if c.cfg.EnforceSession {
		// The session disappeared between scheduling and attempting.
		// Stop here; the caller must reconnect after sign-in.
		c.state = StateDisconnected
		c.mu.Unlock()
		c.listeners.emitError(errSessionRequired())
		return
	}
	timeout := c.cfg.Timeout
	dialer := c.dialer
	target := c.dialURL()
	c.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	log.Debug("realtime: dialing", "client", c.ref, "url", c.url)
	conn, err := dialer.Dial(ctx, target, header, timeout)
	if err != nil {
		c.connectFailed(err)
		return
	}

	// The server must confirm the connection with an ack frame carrying
	// the assigned connection ID, within the same attempt timeout.
	conn.SetReadDeadline(time.Now().Add(timeout))
	ack, err := readAck(conn)
	if err != nil {
		conn.Close()
		c.connectFailed(err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.connID = ack.ConnID
	c.state = StateConnected
	c.gen++
	gen := c.gen
	c.retry.Reset()

	// Replay phase, under the state lock so concurrent Sends order after
	// the flush: rejoin frames first, then buffered envelopes in FIFO
	// order. Rejoins for a channel therefore always precede buffered
	// sends destined for it.
	if c.cfg.AutoJoinChannels {
		for _, name := range c.registry.channels() {
			if err := c.writeLocked(NewJoinFrame(name)); err != nil {
				log.Warn("realtime: rejoin failed", "client", c.ref, "channel", name, "error", err.Error())
			}
		}
	}
	if c.cfg.BufferMessages {
		for _, f := range c.queue.drain() {
			if err := c.writeLocked(f); err != nil {
				log.Warn("realtime: buffered send failed", "client", c.ref, "event", f.Event, "error", err.Error())
			}
		}
	}
	c.mu.Unlock()

	log.Debug("realtime: connected", "client", c.ref, "conn_id", ack.ConnID)
	c.listeners.emitConnect(ack.ConnID)

	go c.readLoop(conn, gen)
}

// readAck reads the server's connected ack frame.
func readAck(conn Conn) (*ConnectedPayload, error) {
	data, err := conn.Read()
	if err != nil {
		return nil, err
	}
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	if f.Event != EventConnected {
		return nil, fmt.Errorf("expected connected ack, got %q", f.Event)
	}
	var ack ConnectedPayload
	if err := json.Unmarshal(f.Payload, &ack); err != nil {
		return nil, fmt.Errorf("decode connected ack: %w", err)
	}
	return &ack, nil
}

// connectFailed classifies an attempt failure, transitions to
// Reconnecting, and schedules the next attempt.
func (c *Client) connectFailed(err error) {
	apiErr := classifyAttemptError(err)

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateReconnecting
	delay := c.retry.NextBackOff()
	c.scheduleReconnectLocked(delay)
	c.mu.Unlock()

	log.Debug("realtime: connection attempt failed",
		"client", c.ref, "error", err.Error(), "retry_in", delay.String())
	c.listeners.emitError(apiErr)
}

// scheduleReconnectLocked arms the reconnect timer. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked(delay time.Duration) {
	c.timer = time.AfterFunc(delay, c.reconnect)
}

// reconnect fires from the reconnect timer. Disconnect cancels the timer
// under the state lock, so no attempt can start once the client is closed.
func (c *Client) reconnect() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()
	c.attempt(context.Background())
}

// readLoop processes inbound frames strictly in arrival order. gen ties
// the loop to the connection it was started for, so a loop outliving its
// connection cannot disturb a newer one.
func (c *Client) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.Read()
		if err != nil {
			c.handleDrop(gen, err)
			return
		}
		f, err := DecodeFrame(data)
		if err != nil {
			log.Debug("realtime: invalid frame", "client", c.ref, "error", err.Error())
			continue
		}
		c.handleFrame(f)
	}
}

// handleDrop reacts to a transport failure on the current connection.
func (c *Client) handleDrop(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connID = ""

	if closeCode(err) == CloseSessionExpired {
		// The server invalidated the session. Reconnecting would loop,
		// so stop and surface the condition; the application must sign
		// in and connect again.
		c.state = StateDisconnected
		c.mu.Unlock()
		log.Warn("realtime: session expired, reconnect suspended", "client", c.ref)
		c.listeners.emitDisconnect(err)
		c.listeners.emitError(errSessionExpired())
		return
	}

	c.state = StateReconnecting
	delay := c.retry.NextBackOff()
	c.scheduleReconnectLocked(delay)
	c.mu.Unlock()

	log.Debug("realtime: transport dropped",
		"client", c.ref, "error", err.Error(), "retry_in", delay.String())
	c.listeners.emitDisconnect(err)
	c.listeners.emitError(api.NewEntry(http.StatusServiceUnavailable,
		api.OriginRealtime, api.CodeTransportError, err.Error()))
}

// handleFrame routes an inbound frame.
func (c *Client) handleFrame(f *Frame) {
	switch f.Event {
	case EventConnected:
		var ack ConnectedPayload
		if json.Unmarshal(f.Payload, &ack) == nil && ack.ConnID != "" {
			c.mu.Lock()
			c.connID = ack.ConnID
			c.mu.Unlock()
		}
	case EventError:
		var p ErrorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return
		}
		c.listeners.emitError(api.NewEntry(http.StatusBadRequest, api.OriginServer, p.Code, p.Message))
	case EventMemberJoined, EventMemberLeft, EventMemberUpdated:
		c.handlePresence(f)
	default:
		c.mu.Lock()
		self := c.connID != "" && f.Origin == c.connID
		echo := c.cfg.EchoMessages
		c.mu.Unlock()
		if self && !echo {
			log.Debug("realtime: suppressed self-originated event", "client", c.ref, "event", f.Event)
			return
		}
		c.listeners.dispatch(Event{
			Channel: f.Channel,
			Name:    f.Event,
			Payload: f.Payload,
			Origin:  f.Origin,
		})
	}
}

// handlePresence updates the presence snapshot for the named channel and
// dispatches typed listeners. Presence is never echo-suppressed: it must
// reflect ground truth regardless of which connection triggered it. The
// client's own presence is not stored as a member entry.
func (c *Client) handlePresence(f *Frame) {
	var p PresencePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		log.Debug("realtime: invalid presence payload", "client", c.ref, "error", err.Error())
		return
	}

	c.mu.Lock()
	own := c.connID != "" && p.Member == c.connID
	c.mu.Unlock()

	kind := presenceJoin
	switch f.Event {
	case EventMemberJoined:
		if !own && f.Channel != "" {
			c.registry.trackMember(f.Channel, p.Member, p.Data)
		}
	case EventMemberLeft:
		kind = presenceLeave
		if f.Channel != "" {
			c.registry.untrackMember(f.Channel, p.Member)
		}
	case EventMemberUpdated:
		kind = presenceUpdate
		if !own && f.Channel != "" {
			c.registry.trackMember(f.Channel, p.Member, p.Data)
		}
	}

	c.listeners.dispatchPresence(kind, Presence{
		Channel: f.Channel,
		Member:  p.Member,
		Data:    p.Data,
	}, f.Origin)
}

// currentSession re-reads the session from the provider. The provider is
// read-only from the client's perspective.
func (c *Client) currentSession() *auth.Session {
	if c.session == nil {
		return nil
	}
	return c.session.CurrentSession()
}

// dialURL appends the API key to the websocket URL.
func (c *Client) dialURL() string {
	u, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	q := u.Query()
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

func classifyAttemptError(err error) *api.Error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timeout {
		return api.NewEntry(http.StatusRequestTimeout, api.OriginRealtime,
			api.CodeConnectionTimeout, "connection attempt timed out")
	}
	return api.NewEntry(http.StatusServiceUnavailable, api.OriginRealtime,
		api.CodeTransportError, err.Error())
}

func errClosed() *api.Error {
	return api.NewEntry(http.StatusBadRequest, api.OriginRealtime, api.CodeNotConnected,
		"client is closed; create a new client to reconnect")
}

func errSessionRequired() *api.Error {
	return api.NewEntry(http.StatusUnauthorized, api.OriginRealtime, api.CodeSessionRequired,
		"an active session is required to open a realtime connection")
}

func errSessionExpired() *api.Error {
	return api.NewEntry(http.StatusUnauthorized, api.OriginRealtime, api.CodeSessionExpired,
		"the server invalidated the session; sign in before reconnecting")
}
