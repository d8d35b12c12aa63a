package shardserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind classifies connection events.
type EventKind uint8

const (
	EventHTTPRequest EventKind = iota + 1
	EventWebSocketOpen
	EventWebSocketFrame
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventHTTPRequest:
		return "http_request"
	case EventWebSocketOpen:
		return "websocket_open"
	case EventWebSocketFrame:
		return "websocket_frame"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Handler implements the protocol surfaces. Every method runs on the shard
// goroutine that owns the connection.
type Handler interface {
	// OnHTTPRequest fills w. The shard writes w to the connection when the
	// call returns.
	OnHTTPRequest(ctx context.Context, c *Conn, w *ResponseBuffer, r *http.Request)
	// OnWebSocketOpen runs once the handshake completed, before any frame.
	OnWebSocketOpen(ctx context.Context, c *Conn)
	// OnWebSocketFrame runs for every text or binary frame.
	OnWebSocketFrame(ctx context.Context, c *Conn, payload []byte)
	// OnTimer runs when the shard timer is due and returns the next deadline.
	OnTimer(ctx context.Context, now time.Time) time.Time
	// OnClose runs once per connection, before its socket is closed.
	OnClose(ctx context.Context, c *Conn)
}

type event struct {
	kind EventKind
	conn *Conn

	req    *http.Request
	reqErr error
	// done is closed once the response for req has been written.
	done chan struct{}

	ws      *websocket.Conn
	payload []byte

	err error
}
