// realtime/listeners_test.go
package realtime

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestListenersRegistrationOrder(t *testing.T) {
	ls := newListenerSet()
	var calls []int

	ls.on("msg", func(Event) { calls = append(calls, 1) })
	ls.on("msg", func(Event) { calls = append(calls, 2) })
	ls.on("msg", func(Event) { calls = append(calls, 3) })
	ls.on("other", func(Event) { calls = append(calls, 99) })

	ls.dispatch(Event{Name: "msg"})

	if !reflect.DeepEqual(calls, []int{1, 2, 3}) {
		t.Errorf("dispatch order mismatch: %v", calls)
	}
}

func TestListenersPanicIsolation(t *testing.T) {
	ls := newListenerSet()
	var second, third bool

	ls.on("msg", func(Event) { panic("listener bug") })
	ls.on("msg", func(Event) { second = true })
	ls.on("msg", func(Event) { third = true })

	ls.dispatch(Event{Name: "msg"})

	if !second || !third {
		t.Errorf("listeners after a panicking one must still run: second=%v third=%v", second, third)
	}
}

func TestListenersPresenceBeforeGeneric(t *testing.T) {
	ls := newListenerSet()
	var calls []string

	ls.on(EventMemberJoined, func(Event) { calls = append(calls, "generic") })
	ls.onPresence(presenceJoin, func(Presence) { calls = append(calls, "typed") })

	ls.dispatchPresence(presenceJoin, Presence{Channel: "room", Member: "m1"}, "")

	want := []string{"typed", "generic"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("typed presence listeners must run first: %v", calls)
	}
}

func TestListenersPresencePayloadShape(t *testing.T) {
	ls := newListenerSet()
	var got Presence
	ls.onPresence(presenceUpdate, func(p Presence) { got = p })

	data := json.RawMessage(`{"name":"ada"}`)
	ls.dispatchPresence(presenceUpdate, Presence{Channel: "room", Member: "m1", Data: data}, "origin-1")

	if got.Channel != "room" || got.Member != "m1" || string(got.Data) != `{"name":"ada"}` {
		t.Errorf("presence payload mismatch: %+v", got)
	}
}

func TestListenersPresencePanicIsolation(t *testing.T) {
	ls := newListenerSet()
	var ran bool

	ls.onPresence(presenceLeave, func(Presence) { panic("boom") })
	ls.onPresence(presenceLeave, func(Presence) { ran = true })

	ls.dispatchPresence(presenceLeave, Presence{Channel: "room", Member: "m1"}, "")

	if !ran {
		t.Error("second presence listener must run despite the panic")
	}
}
