package shardserver

import (
	"bufio"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// State is the protocol state of a connection.
type State uint8

const (
	StateIdle State = iota
	StateHTTPPending
	StateWebSocketOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHTTPPending:
		return "http_pending"
	case StateWebSocketOpen:
		return "websocket_open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const readBufferSize = 4096

// Conn is a connection handle.
//
// Apart from ID, TraceID and RemoteAddr, its methods must only be called
// from the owning shard's goroutine, which is where Handler callbacks run.
type Conn struct {
	id      uint64
	traceID string
	netConn net.Conn
	// lr caps how much the reader may pull while parsing request headers.
	lr *io.LimitedReader
	br *bufio.Reader

	handedOff atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	// closedCh is closed together with the socket so the reader stops waiting.
	closedCh chan struct{}

	// Owned by the shard goroutine.
	shard          *Shard
	state          State
	ws             *websocket.Conn
	handshake      *http.Request
	sessionID      uint64
	hasSession     bool
	closeAfterSend bool
}

// NewConn wraps an accepted connection.
func NewConn(id uint64, nc net.Conn) *Conn {
	lr := &io.LimitedReader{R: nc, N: math.MaxInt64}
	return &Conn{
		id:       id,
		traceID:  ulid.Make().String(),
		netConn:  nc,
		lr:       lr,
		br:       bufio.NewReaderSize(lr, readBufferSize),
		closedCh: make(chan struct{}),
	}
}

// ID returns the acceptor-assigned connection id.
func (c *Conn) ID() uint64 { return c.id }

// TraceID returns the connection's ULID, used in logs.
func (c *Conn) TraceID() string { return c.traceID }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.netConn.RemoteAddr() }

// RemoteIP returns the host part of RemoteAddr.
func (c *Conn) RemoteIP() string {
	addr := c.netConn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// State returns the protocol state.
func (c *Conn) State() State { return c.state }

// Shard returns the index of the owning shard, or -1 before adoption.
func (c *Conn) Shard() int {
	if c.shard == nil {
		return -1
	}
	return c.shard.index
}

// Handshake returns the WebSocket upgrade request, or nil for plain HTTP
// connections.
func (c *Conn) Handshake() *http.Request { return c.handshake }

// ShardConnections returns how many connections the owning shard holds.
func (c *Conn) ShardConnections() int {
	if c.shard == nil {
		return 0
	}
	return len(c.shard.conns)
}

// BindSession records the session the connection authenticated with.
func (c *Conn) BindSession(id uint64) {
	c.sessionID = id
	c.hasSession = true
}

// SessionID returns the bound session id.
func (c *Conn) SessionID() (uint64, bool) {
	return c.sessionID, c.hasSession
}

// MarkSendAndClose makes the shard close the connection once the pending
// HTTP response has been written.
func (c *Conn) MarkSendAndClose() {
	c.closeAfterSend = true
}

// SendText writes one WebSocket text frame.
func (c *Conn) SendText(msg string) error {
	if c.state == StateClosed || c.closed.Load() {
		return ErrConnClosed
	}
	if c.state != StateWebSocketOpen || c.ws == nil {
		return ErrNotWebSocket
	}
	if c.shard != nil && c.shard.cfg.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.shard.cfg.WriteTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

// BroadcastText sends msg to every other WebSocket connection of the same
// shard and returns how many frames were written.
func (c *Conn) BroadcastText(msg string) int {
	if c.shard == nil {
		return 0
	}
	return c.shard.broadcast(c, msg)
}

// Closed reports whether the socket has been closed.
func (c *Conn) Closed() bool { return c.closed.Load() }

// close shuts the socket. Safe from any goroutine.
func (c *Conn) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closedCh)
		err = c.netConn.Close()
	})
	return err
}
