package shardserver

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned by HandoffQueue.Push when the queue is at capacity.
	ErrQueueFull = errors.New("shardserver: handoff queue full")

	// ErrAlreadyOwned is returned when a connection is handed off a second time.
	ErrAlreadyOwned = errors.New("shardserver: connection already handed off")

	// ErrConnClosed is returned for operations on a closed connection.
	ErrConnClosed = errors.New("shardserver: connection closed")

	// ErrNotWebSocket is returned by SendText on a connection that has not
	// completed a WebSocket handshake.
	ErrNotWebSocket = errors.New("shardserver: connection is not a websocket")
)

// BindError reports that the listen address could not be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
