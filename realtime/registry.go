// realtime/registry.go
package realtime

import (
	"encoding/json"
	"sync"
)

// channelRegistry tracks the set of channels the client intends to be
// subscribed to, plus a per-channel presence snapshot. Membership reflects
// joins minus leaves regardless of connection state; the server remains the
// source of truth for confirmed membership. Join order is preserved so that
// rejoin frames replay in the order channels were joined.
type channelRegistry struct {
	mu       sync.Mutex
	order    []string
	members  map[string]struct{}
	presence map[string]map[string]json.RawMessage // channel -> member -> profile
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{
		members:  make(map[string]struct{}),
		presence: make(map[string]map[string]json.RawMessage),
	}
}

// add records a channel membership. Returns false if already present.
func (r *channelRegistry) add(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[name]; ok {
		return false
	}
	r.members[name] = struct{}{}
	r.order = append(r.order, name)
	return true
}

// remove drops a channel membership and its presence snapshot. Returns
// false if the channel was never joined.
func (r *channelRegistry) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[name]; !ok {
		return false
	}
	delete(r.members, name)
	delete(r.presence, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *channelRegistry) has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[name]
	return ok
}

// channels returns the membership set in join order.
func (r *channelRegistry) channels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// trackMember stores or refreshes a member's presence on a channel.
func (r *channelRegistry) trackMember(channel, member string, data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.presence[channel]
	if !ok {
		entries = make(map[string]json.RawMessage)
		r.presence[channel] = entries
	}
	entries[member] = data
}

// untrackMember removes a member's presence from a channel.
func (r *channelRegistry) untrackMember(channel, member string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, ok := r.presence[channel]
	if !ok {
		return
	}
	delete(entries, member)
	if len(entries) == 0 {
		delete(r.presence, channel)
	}
}

// presenceSnapshot returns a copy of the presence state for a channel.
func (r *channelRegistry) presenceSnapshot(channel string) map[string]json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.presence[channel]
	snapshot := make(map[string]json.RawMessage, len(entries))
	for member, data := range entries {
		snapshot[member] = data
	}
	return snapshot
}
