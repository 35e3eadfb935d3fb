// realtime/registry_test.go
package realtime

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRegistryMembership(t *testing.T) {
	r := newChannelRegistry()

	if !r.add("a") {
		t.Error("first add should return true")
	}
	if r.add("a") {
		t.Error("duplicate add should return false")
	}
	r.add("b")
	r.add("c")

	if !r.remove("b") {
		t.Error("remove of joined channel should return true")
	}
	if r.remove("never-joined") {
		t.Error("remove of unknown channel should return false")
	}

	got := r.channels()
	want := []string{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("channels mismatch: got %v, want %v", got, want)
	}
}

func TestRegistryJoinOrderPreserved(t *testing.T) {
	r := newChannelRegistry()
	names := []string{"chat", "alerts", "metrics", "audit"}
	for _, n := range names {
		r.add(n)
	}
	r.remove("alerts")
	r.add("alerts") // rejoin moves to the end

	want := []string{"chat", "metrics", "audit", "alerts"}
	if got := r.channels(); !reflect.DeepEqual(got, want) {
		t.Errorf("order mismatch: got %v, want %v", got, want)
	}
}

func TestRegistryPresence(t *testing.T) {
	r := newChannelRegistry()
	r.add("room")

	r.trackMember("room", "m1", json.RawMessage(`{"status":"online"}`))
	r.trackMember("room", "m2", json.RawMessage(`{"status":"away"}`))

	snap := r.presenceSnapshot("room")
	if len(snap) != 2 {
		t.Fatalf("expected 2 members, got %d", len(snap))
	}
	if string(snap["m1"]) != `{"status":"online"}` {
		t.Errorf("m1 data mismatch: %s", snap["m1"])
	}

	// Updates replace the profile.
	r.trackMember("room", "m1", json.RawMessage(`{"status":"busy"}`))
	if snap := r.presenceSnapshot("room"); string(snap["m1"]) != `{"status":"busy"}` {
		t.Errorf("m1 update not applied: %s", snap["m1"])
	}

	r.untrackMember("room", "m1")
	if snap := r.presenceSnapshot("room"); len(snap) != 1 {
		t.Errorf("expected 1 member after untrack, got %d", len(snap))
	}

	// Snapshot is a copy.
	snap = r.presenceSnapshot("room")
	delete(snap, "m2")
	if len(r.presenceSnapshot("room")) != 1 {
		t.Error("mutating snapshot should not affect registry")
	}
}

func TestRegistryLeaveDropsPresence(t *testing.T) {
	r := newChannelRegistry()
	r.add("room")
	r.trackMember("room", "m1", nil)
	r.remove("room")
	if len(r.presenceSnapshot("room")) != 0 {
		t.Error("presence should be dropped with the membership")
	}
}
