// realtime/listeners.go
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/markb/sblite-go/api"
	"github.com/markb/sblite-go/internal/log"
)

// Event is what generic listeners receive for an inbound frame.
type Event struct {
	Channel string // empty for broadcast frames
	Name    string
	Payload json.RawMessage
	Origin  string
}

// Presence is what typed presence listeners receive.
type Presence struct {
	Channel string
	Member  string
	Data    json.RawMessage
}

// Handler is a callback for custom events.
type Handler func(Event)

// PresenceHandler is a callback for member-joined/left/updated notifications.
type PresenceHandler func(Presence)

// ErrorHandler receives recoverable and non-recoverable conditions the
// connection controller reports.
type ErrorHandler func(*api.Error)

const (
	presenceJoin = iota
	presenceLeave
	presenceUpdate
)

// listenerSet holds named callback lists. Callbacks for the same event run
// synchronously in registration order; a panicking callback is isolated so
// later callbacks and the connection itself are unaffected.
type listenerSet struct {
	mu         sync.RWMutex
	generic    map[string][]Handler
	onJoin     []PresenceHandler
	onLeave    []PresenceHandler
	onUpdate   []PresenceHandler
	onError    []ErrorHandler
	connect    []func(connID string)
	disconnect []func(err error)
}

func newListenerSet() *listenerSet {
	return &listenerSet{generic: make(map[string][]Handler)}
}

func (ls *listenerSet) on(event string, h Handler) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.generic[event] = append(ls.generic[event], h)
}

func (ls *listenerSet) onPresence(kind int, h PresenceHandler) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	switch kind {
	case presenceJoin:
		ls.onJoin = append(ls.onJoin, h)
	case presenceLeave:
		ls.onLeave = append(ls.onLeave, h)
	case presenceUpdate:
		ls.onUpdate = append(ls.onUpdate, h)
	}
}

func (ls *listenerSet) addError(h ErrorHandler) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.onError = append(ls.onError, h)
}

func (ls *listenerSet) addConnect(h func(string)) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.connect = append(ls.connect, h)
}

func (ls *listenerSet) addDisconnect(h func(error)) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.disconnect = append(ls.disconnect, h)
}

// dispatch invokes generic listeners for ev.Name in registration order.
func (ls *listenerSet) dispatch(ev Event) {
	ls.mu.RLock()
	handlers := append([]Handler(nil), ls.generic[ev.Name]...)
	ls.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer recoverListener(ev.Name)
			h(ev)
		}()
	}
}

// dispatchPresence invokes typed presence listeners, then any generic
// listeners registered for the same frame.
func (ls *listenerSet) dispatchPresence(kind int, p Presence, origin string) {
	ls.mu.RLock()
	var handlers []PresenceHandler
	var event string
	switch kind {
	case presenceJoin:
		handlers = append(handlers, ls.onJoin...)
		event = EventMemberJoined
	case presenceLeave:
		handlers = append(handlers, ls.onLeave...)
		event = EventMemberLeft
	case presenceUpdate:
		handlers = append(handlers, ls.onUpdate...)
		event = EventMemberUpdated
	}
	ls.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer recoverListener(event)
			h(p)
		}()
	}

	payload, _ := json.Marshal(PresencePayload{Member: p.Member, Data: p.Data})
	ls.dispatch(Event{Channel: p.Channel, Name: event, Payload: payload, Origin: origin})
}

func (ls *listenerSet) emitError(apiErr *api.Error) {
	ls.mu.RLock()
	handlers := append([]ErrorHandler(nil), ls.onError...)
	ls.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer recoverListener("error")
			h(apiErr)
		}()
	}
}

func (ls *listenerSet) emitConnect(connID string) {
	ls.mu.RLock()
	handlers := append(([]func(string))(nil), ls.connect...)
	ls.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer recoverListener("connect")
			h(connID)
		}()
	}
}

func (ls *listenerSet) emitDisconnect(err error) {
	ls.mu.RLock()
	handlers := append(([]func(error))(nil), ls.disconnect...)
	ls.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer recoverListener("disconnect")
			h(err)
		}()
	}
}

func recoverListener(event string) {
	if r := recover(); r != nil {
		log.Warn("realtime: listener panicked", "event", event, "panic", r)
	}
}
