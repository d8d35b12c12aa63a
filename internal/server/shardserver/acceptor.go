package shardserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

// Listen binds addr on TCP. Failures are returned as *BindError.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return ln, nil
}

// Acceptor accepts connections on one listener and hands them to a pool.
// It never reads from a connection.
type Acceptor struct {
	ln      net.Listener
	pool    *WorkerPool
	logger  *slog.Logger
	metrics *metric.Registry

	nextID atomic.Uint64
}

// NewAcceptor creates an acceptor for ln.
func NewAcceptor(ln net.Listener, pool *WorkerPool, opts ...Option) *Acceptor {
	o := buildOptions(opts)
	return &Acceptor{
		ln:      ln,
		pool:    pool,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Addr returns the listen address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Close closes the listener, ending Serve.
func (a *Acceptor) Close() error { return a.ln.Close() }

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed, both of which return nil.
func (a *Acceptor) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = a.ln.Close() })
	defer stop()

	a.logger.Info("accepting connections", "address", a.ln.Addr().String(), "workers", a.pool.Size())

	var backoff time.Duration
	for {
		nc, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() { //nolint:staticcheck // same check net/http uses
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff *= 2
				}
				if backoff > time.Second {
					backoff = time.Second
				}
				a.logger.Warn("accept error, retrying", "error", err, "delay", backoff)
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return err
		}
		backoff = 0
		a.handoff(nc)
	}
}

func (a *Acceptor) handoff(nc net.Conn) {
	c := NewConn(a.nextID.Add(1), nc)
	a.metrics.IncConnectionsAccepted()

	idx, err := a.pool.Handoff(c)
	if err != nil {
		a.metrics.IncHandoffRejected()
		a.logger.Warn("handoff rejected, closing connection",
			"conn_id", c.id, "shard", idx, "remote", nc.RemoteAddr(), "error", err)
		_ = c.close()
	}
}
