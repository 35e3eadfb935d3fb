// realtime/buffer.go
package realtime

import (
	"net/http"
	"sync"

	"github.com/markb/sblite-go/api"
	"github.com/markb/sblite-go/internal/log"
)

// Overflow selects what happens when the outbound buffer reaches its
// configured capacity.
type Overflow int

const (
	// OverflowDropOldest evicts the oldest buffered frame to make room.
	OverflowDropOldest Overflow = iota
	// OverflowRejectNew fails the send with a buffer_overflow error.
	OverflowRejectNew
)

// sendQueue is the outbound buffer: an ordered FIFO of frames that could
// not be transmitted because the connection was unusable. Frames are
// flushed in enqueue order on reconnect, never reordered. With the default
// MaxBufferSize of 0 the queue is unbounded.
type sendQueue struct {
	mu     sync.Mutex
	max    int
	policy Overflow
	frames []*Frame
}

func newSendQueue(max int, policy Overflow) *sendQueue {
	return &sendQueue{max: max, policy: policy}
}

// push appends a frame. When the queue is bounded and full, the configured
// overflow policy applies.
func (q *sendQueue) push(f *Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.max > 0 && len(q.frames) >= q.max {
		switch q.policy {
		case OverflowRejectNew:
			return api.NewEntry(http.StatusBadRequest, api.OriginRealtime, api.CodeBufferOverflow,
				"outbound buffer is full")
		default:
			log.Warn("realtime: outbound buffer full, dropping oldest frame",
				"event", q.frames[0].Event, "channel", q.frames[0].Channel)
			q.frames = q.frames[1:]
		}
	}
	q.frames = append(q.frames, f)
	return nil
}

// drain removes and returns all buffered frames in enqueue order.
func (q *sendQueue) drain() []*Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	frames := q.frames
	q.frames = nil
	return frames
}

// clear discards all buffered frames.
func (q *sendQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.frames = nil
}

func (q *sendQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}
