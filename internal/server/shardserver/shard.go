package shardserver

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/telemetry/logger"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

// Defaults for Config.
const (
	DefaultWorkers        = 2
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultTimerInterval  = 5 * time.Second
	DefaultEventBuffer    = 256
	DefaultEventBatch     = 64
	DefaultWriteTimeout   = 10 * time.Second
	DefaultMaxBodyBytes   = 1 << 20
	DefaultMaxHeaderBytes = 1 << 20
)

// Config controls the worker pool and its shards.
type Config struct {
	// Workers is the number of shards.
	Workers int
	// PollInterval bounds how long a shard sleeps without any signal.
	PollInterval time.Duration
	// QueueCapacity bounds each HandoffQueue. Zero means unbounded.
	QueueCapacity int
	// EventBuffer is the capacity of each shard's event channel.
	EventBuffer int
	// EventBatch is the most events handled per loop iteration.
	EventBatch int
	// ReadTimeout bounds waiting for and reading one HTTP request. Zero
	// disables it. It does not apply to open WebSocket connections.
	ReadTimeout time.Duration
	// WriteTimeout bounds each write.
	WriteTimeout time.Duration
	// MaxBodyBytes limits HTTP request bodies.
	MaxBodyBytes int64
	// MaxHeaderBytes limits the request line plus headers of each HTTP
	// request. Larger requests get 431 and the connection is closed.
	MaxHeaderBytes int64
	// CheckOrigin is passed to the WebSocket upgrader. Nil keeps the
	// same-origin default.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        DefaultWorkers,
		PollInterval:   DefaultPollInterval,
		EventBuffer:    DefaultEventBuffer,
		EventBatch:     DefaultEventBatch,
		WriteTimeout:   DefaultWriteTimeout,
		MaxBodyBytes:   DefaultMaxBodyBytes,
		MaxHeaderBytes: DefaultMaxHeaderBytes,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = DefaultEventBuffer
	}
	if c.EventBatch <= 0 {
		c.EventBatch = DefaultEventBatch
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	return c
}

// Shard is one worker event loop.
type Shard struct {
	index   int
	cfg     Config
	queue   *HandoffQueue
	events  chan event
	handler Handler
	logger  *slog.Logger
	metrics *metric.Registry

	// done is closed when Run returns; readers stop posting after that.
	done chan struct{}

	// Owned by the Run goroutine.
	conns     map[uint64]*Conn
	nextTimer time.Time
}

func newShard(index int, cfg Config, h Handler, log *slog.Logger, m *metric.Registry) *Shard {
	return &Shard{
		index:   index,
		cfg:     cfg,
		queue:   NewHandoffQueue(cfg.QueueCapacity),
		events:  make(chan event, cfg.EventBuffer),
		handler: h,
		logger:  log.With("shard", index),
		metrics: m,
		done:    make(chan struct{}),
		conns:   make(map[uint64]*Conn),
	}
}

// Index returns the shard index.
func (s *Shard) Index() int { return s.index }

// Queue returns the shard's handoff queue.
func (s *Shard) Queue() *HandoffQueue { return s.queue }

// Done is closed once the shard loop has exited.
func (s *Shard) Done() <-chan struct{} { return s.done }

// Run is the shard loop. It returns when ctx is cancelled, after closing
// every owned and queued connection.
func (s *Shard) Run(ctx context.Context) {
	defer close(s.done)

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	s.logger.Debug("shard started")
	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return
		case <-s.queue.Wake():
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		case <-poll.C:
		}

		s.adoptQueued(ctx)
		s.drainEvents(ctx)
		s.fireTimer(ctx, time.Now())
	}
}

func (s *Shard) adoptQueued(ctx context.Context) {
	s.queue.Drain(func(c *Conn) {
		if err := s.adopt(ctx, c); err != nil {
			s.metrics.IncAdoptFailure(s.index)
			s.logger.Warn("dropping connection", "conn_id", c.id, "remote", c.RemoteAddr(), "error", err)
			_ = c.close()
		}
	})
	s.metrics.SetShardQueueDepth(s.index, s.queue.Len())
}

// adopt takes ownership of c and starts its reader.
func (s *Shard) adopt(_ context.Context, c *Conn) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if err := c.netConn.SetDeadline(time.Time{}); err != nil {
		return err
	}
	c.shard = s
	c.state = StateIdle
	s.conns[c.id] = c
	s.metrics.SetShardConnections(s.index, len(s.conns))
	s.logger.Debug("connection adopted", "conn_id", c.id, "trace_id", c.traceID, "remote", c.RemoteAddr())

	go s.readLoop(c)
	return nil
}

func (s *Shard) drainEvents(ctx context.Context) {
	for i := 0; i < s.cfg.EventBatch; i++ {
		select {
		case ev := <-s.events:
			s.dispatch(ctx, ev)
		default:
			return
		}
	}
}

func (s *Shard) fireTimer(ctx context.Context, now time.Time) {
	if now.Before(s.nextTimer) {
		return
	}
	next := s.handler.OnTimer(ctx, now)
	if !next.After(now) {
		next = now.Add(DefaultTimerInterval)
	}
	s.nextTimer = next
}

// post delivers an event from a reader goroutine. It gives up once the
// shard has stopped.
func (s *Shard) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Shard) connContext(ctx context.Context, c *Conn) context.Context {
	ctx = logger.WithConnID(ctx, c.id)
	return logger.WithTraceID(ctx, c.traceID)
}

func (s *Shard) dispatch(ctx context.Context, ev event) {
	c := ev.conn
	s.metrics.IncEvent(ev.kind.String())

	if c.shard != s || c.state == StateClosed {
		if ev.done != nil {
			close(ev.done)
		}
		return
	}
	ctx = s.connContext(ctx, c)

	switch ev.kind {
	case EventHTTPRequest:
		s.handleHTTP(ctx, c, ev)
	case EventWebSocketOpen:
		c.ws = ev.ws
		c.handshake = ev.req
		c.state = StateWebSocketOpen
		s.safely(ctx, c, func() { s.handler.OnWebSocketOpen(ctx, c) })
	case EventWebSocketFrame:
		if c.state != StateWebSocketOpen {
			return
		}
		s.safely(ctx, c, func() { s.handler.OnWebSocketFrame(ctx, c, ev.payload) })
	case EventClose:
		s.release(ctx, c, ev.err)
	}
}

func (s *Shard) handleHTTP(ctx context.Context, c *Conn, ev event) {
	defer close(ev.done)

	c.state = StateHTTPPending
	c.closeAfterSend = false

	w := NewResponseBuffer()
	method := http.MethodGet
	if ev.reqErr != nil {
		status := http.StatusRequestEntityTooLarge
		if errors.Is(ev.reqErr, domain.ErrHeaderTooLarge) {
			status = http.StatusRequestHeaderFieldsTooLarge
		}
		w.WriteHeader(status)
		_, _ = w.WriteString(domain.ErrorText(ev.reqErr))
		c.closeAfterSend = true
	} else {
		method = ev.req.Method
		s.callHTTP(ctx, c, w, ev.req)
		if ev.req.Close {
			c.closeAfterSend = true
		}
	}

	if c.state == StateClosed {
		return
	}
	closeAfter := c.closeAfterSend
	_ = c.netConn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	err := w.writeTo(bufio.NewWriter(c.netConn), method, closeAfter)
	if err != nil || closeAfter {
		s.release(ctx, c, err)
		return
	}
	c.state = StateIdle
}

func (s *Shard) callHTTP(ctx context.Context, c *Conn, w *ResponseBuffer, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("http handler panicked", "conn_id", c.id, "path", r.URL.Path, "panic", p)
			w.Reset()
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.WriteString(domain.ErrInternalServer.Text())
			c.closeAfterSend = true
		}
	}()
	s.handler.OnHTTPRequest(ctx, c, w, r.WithContext(ctx))
}

func (s *Shard) safely(ctx context.Context, c *Conn, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("handler panicked", "conn_id", c.id, "state", c.state.String(), "panic", p)
			s.release(ctx, c, nil)
		}
	}()
	fn()
}

// release runs OnClose and closes the socket. Repeated calls are no-ops.
func (s *Shard) release(ctx context.Context, c *Conn, cause error) {
	if c.state == StateClosed {
		return
	}
	func() {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("close handler panicked", "conn_id", c.id, "panic", p)
			}
		}()
		s.handler.OnClose(ctx, c)
	}()

	c.state = StateClosed
	delete(s.conns, c.id)
	_ = c.close()
	s.metrics.SetShardConnections(s.index, len(s.conns))

	if cause != nil {
		s.logger.Debug("connection closed", "conn_id", c.id, "error", cause)
	} else {
		s.logger.Debug("connection closed", "conn_id", c.id)
	}
}

func (s *Shard) broadcast(from *Conn, msg string) int {
	sent := 0
	for id, c := range s.conns {
		if c == from || c.state != StateWebSocketOpen {
			continue
		}
		if err := c.SendText(msg); err != nil {
			s.logger.Debug("broadcast write failed", "conn_id", id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Len returns the number of owned connections. Only valid on the shard
// goroutine, i.e. from Handler callbacks.
func (s *Shard) Len() int { return len(s.conns) }

func (s *Shard) shutdown(ctx context.Context) {
	for _, c := range s.conns {
		s.release(ctx, c, nil)
	}
	n := s.queue.Drain(func(c *Conn) { _ = c.close() })
	s.metrics.SetShardQueueDepth(s.index, 0)
	s.logger.Debug("shard stopped", "dropped_queued", n)
}
