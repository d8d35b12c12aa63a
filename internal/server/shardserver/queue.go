package shardserver

import (
	"sync"

	"github.com/eapache/queue"
)

// HandoffQueue carries connections from the acceptor to one shard.
//
// Push never blocks. A connection can be pushed successfully at most once
// over its lifetime, so it is delivered to at most one shard.
type HandoffQueue struct {
	mu       sync.Mutex
	ring     *queue.Queue
	capacity int

	wake chan struct{}
}

// NewHandoffQueue creates a queue. capacity <= 0 means unbounded.
func NewHandoffQueue(capacity int) *HandoffQueue {
	return &HandoffQueue{
		ring:     queue.New(),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Push enqueues c and signals the wake channel.
func (q *HandoffQueue) Push(c *Conn) error {
	if !c.handedOff.CompareAndSwap(false, true) {
		return ErrAlreadyOwned
	}

	q.mu.Lock()
	if q.capacity > 0 && q.ring.Length() >= q.capacity {
		q.mu.Unlock()
		c.handedOff.Store(false)
		return ErrQueueFull
	}
	q.ring.Add(c)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Pop removes the oldest connection.
func (q *HandoffQueue) Pop() (*Conn, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring.Length() == 0 {
		return nil, false
	}
	return q.ring.Remove().(*Conn), true
}

// Drain pops every queued connection in FIFO order and returns how many
// were passed to fn.
func (q *HandoffQueue) Drain(fn func(*Conn)) int {
	n := 0
	for {
		c, ok := q.Pop()
		if !ok {
			return n
		}
		fn(c)
		n++
	}
}

// Len returns the number of queued connections.
func (q *HandoffQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Length()
}

// Wake is signalled after every successful Push. Signals coalesce.
func (q *HandoffQueue) Wake() <-chan struct{} {
	return q.wake
}

func (q *HandoffQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
