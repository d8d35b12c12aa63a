package shardserver

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

// Option configures a WorkerPool or an Acceptor.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.Registry
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ShardFor maps a connection id onto one of n shards.
func ShardFor(id uint64, n int) int {
	if n <= 1 {
		return 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	return int(murmur3.Sum32(b[:]) % uint32(n))
}

// WorkerPool is a fixed set of shards sharing one Handler.
type WorkerPool struct {
	shards  []*Shard
	logger  *slog.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewWorkerPool creates cfg.Workers shards. Call Start to run them.
func NewWorkerPool(cfg Config, h Handler, opts ...Option) *WorkerPool {
	cfg = cfg.withDefaults()
	o := buildOptions(opts)

	p := &WorkerPool{
		shards:  make([]*Shard, cfg.Workers),
		logger:  o.logger,
		metrics: o.metrics,
	}
	for i := range p.shards {
		p.shards[i] = newShard(i, cfg, h, o.logger, o.metrics)
	}
	return p
}

// Start launches one goroutine per shard. The shards stop when ctx is
// cancelled or Stop is called.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for _, s := range p.shards {
		p.wg.Add(1)
		go func(s *Shard) {
			defer p.wg.Done()
			s.Run(ctx)
		}(s)
	}
	p.logger.Info("worker pool started", "workers", len(p.shards))
}

// Stop cancels every shard and waits for them to exit.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Size returns the number of shards.
func (p *WorkerPool) Size() int { return len(p.shards) }

// Shard returns shard i.
func (p *WorkerPool) Shard(i int) *Shard { return p.shards[i] }

// Handoff queues c on the shard chosen by ShardFor and returns its index.
func (p *WorkerPool) Handoff(c *Conn) (int, error) {
	idx := ShardFor(c.id, len(p.shards))
	q := p.shards[idx].queue
	if err := q.Push(c); err != nil {
		return idx, err
	}
	p.metrics.SetShardQueueDepth(idx, q.Len())
	return idx, nil
}
