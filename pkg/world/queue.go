package world

import (
	"sync"

	"github.com/much-hall/gomuch/pkg/event"
)

// Queue is a bounded, ordered buffer of outbound events for one session.
// The engine is the only producer (Append during fan-out); the session's
// transport adapter is the only consumer. Push transports block on Wake and
// drain whenever something arrives; polling transports drain on each poll
// request. On overflow the oldest events are dropped and the next drain is
// prefixed with a truncation notice, so an abandoned browser tab can never
// grow the buffer without bound.
type Queue struct {
	mu           sync.Mutex
	events       []event.Event
	cap          int
	dropped      int // since last drain; resets with the truncation notice
	droppedTotal int // lifetime, for the census
	closed       bool
	wake         chan struct{}
}

// NewQueue creates a delivery queue holding at most capacity events.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		cap:  capacity,
		wake: make(chan struct{}, 1),
	}
}

// Append adds an event to the queue and wakes the consumer. Returns false if
// the queue is closed. Oldest events are dropped beyond capacity.
func (q *Queue) Append(ev event.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, ev)
	if over := len(q.events) - q.cap; over > 0 {
		q.events = q.events[over:]
		q.dropped += over
		q.droppedTotal += over
	}
	// The wake send must stay under the mutex so it cannot race the
	// close(q.wake) in Close. The one-slot buffer keeps it non-blocking.
	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// DrainAll removes and returns every buffered event in append order. If
// events were dropped since the last drain, the result starts with a
// truncation notice. The returned slice is a consistent snapshot; it never
// contains a partially appended event.
func (q *Queue) DrainAll() []event.Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 && q.dropped == 0 {
		return nil
	}
	out := make([]event.Event, 0, len(q.events)+1)
	if q.dropped > 0 {
		out = append(out, event.Notice("(some messages were dropped; you fell too far behind)"))
		q.dropped = 0
	}
	out = append(out, q.events...)
	q.events = nil
	return out
}

// Wake returns a channel that receives (or is closed) whenever the queue has
// something to drain. Closed queues have a closed wake channel, so a
// consumer loop terminates after a final drain.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Close marks the queue closed and releases any blocked consumer. Buffered
// events remain drainable so a farewell notice can still be delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.wake)
}

// Closed reports whether the queue has been closed.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Dropped returns the lifetime count of events lost to overflow.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.droppedTotal
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
