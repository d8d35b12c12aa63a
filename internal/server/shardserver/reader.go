package shardserver

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/chaingate/internal/core/domain"
)

// readLoop parses the wire for c and posts events to s. It runs on its own
// goroutine and never touches connection state owned by the shard.
func (s *Shard) readLoop(c *Conn) {
	err := s.readRequests(c)
	if c.closed.Load() {
		return
	}
	s.post(event{kind: EventClose, conn: c, err: err})
}

func (s *Shard) readRequests(c *Conn) error {
	for {
		if s.cfg.ReadTimeout > 0 {
			if err := c.netConn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
				return err
			}
		}
		// The extra buffer size covers what bufio reads ahead.
		c.lr.N = s.cfg.MaxHeaderBytes + readBufferSize
		req, err := http.ReadRequest(c.br)
		if err != nil {
			if c.lr.N <= 0 {
				s.reject(c, domain.ErrHeaderTooLarge)
				return domain.ErrHeaderTooLarge
			}
			return err
		}
		c.lr.N = math.MaxInt64
		req.RemoteAddr = c.RemoteAddr().String()

		if websocket.IsWebSocketUpgrade(req) {
			return s.serveWebSocket(c, req)
		}

		ev := event{kind: EventHTTPRequest, conn: c, req: req, done: make(chan struct{})}
		body, err := readBody(req.Body, s.cfg.MaxBodyBytes)
		switch {
		case errors.Is(err, domain.ErrBodyTooLarge):
			ev.reqErr = err
		case err != nil:
			return err
		default:
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		if !s.post(ev) {
			return nil
		}
		// Wait for the response so replies keep request order.
		select {
		case <-ev.done:
		case <-c.closedCh:
			return nil
		case <-s.done:
			return nil
		}
		if ev.reqErr != nil {
			return ev.reqErr
		}
		if c.closed.Load() {
			return nil
		}
	}
}

// reject has the shard answer a request that could not be read, then waits
// for the reply to go out.
func (s *Shard) reject(c *Conn, reqErr error) {
	ev := event{kind: EventHTTPRequest, conn: c, reqErr: reqErr, done: make(chan struct{})}
	if !s.post(ev) {
		return
	}
	select {
	case <-ev.done:
	case <-c.closedCh:
	case <-s.done:
	}
}

func readBody(body io.ReadCloser, limit int64) ([]byte, error) {
	if body == nil || body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, domain.ErrBodyTooLarge
	}
	return data, nil
}

// serveWebSocket completes the handshake, then reads frames until the
// connection fails. The handshake is the only write made off the shard
// goroutine.
func (s *Shard) serveWebSocket(c *Conn, req *http.Request) error {
	up := websocket.Upgrader{
		HandshakeTimeout: s.cfg.WriteTimeout,
		CheckOrigin:      s.cfg.CheckOrigin,
	}
	hw := &hijackWriter{ResponseBuffer: NewResponseBuffer(), c: c}
	ws, err := up.Upgrade(hw, req, nil)
	if err != nil {
		if !hw.hijacked {
			_ = c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			_ = hw.writeTo(bufio.NewWriter(c.netConn), req.Method, true)
		}
		return err
	}
	_ = c.netConn.SetReadDeadline(time.Time{})
	ws.SetReadLimit(s.cfg.MaxBodyBytes)

	if !s.post(event{kind: EventWebSocketOpen, conn: c, ws: ws, req: req}) {
		return nil
	}
	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if !s.post(event{kind: EventWebSocketFrame, conn: c, payload: payload}) {
			return nil
		}
	}
}
