package service

import (
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/chaingate/pkg/cmap"
)

// DefaultLimiterIdleTTL is how long an unused client bucket is kept.
const DefaultLimiterIdleTTL = 10 * time.Minute

// evictEvery is the number of Allow calls between idle sweeps.
const evictEvery = 512

// ClientLimiter applies a token bucket per client key (usually the remote
// IP) and evicts buckets that have gone idle. A nil *ClientLimiter allows
// everything.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clients *cmap.Map[string, *clientBucket]
	hits    atomic.Uint64
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewClientLimiter returns nil when rps is not positive, which disables
// limiting. A non-positive burst is raised to ceil(rps).
func NewClientLimiter(rps float64, burst int, idleTTL time.Duration) *ClientLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps)
		if float64(burst) < rps {
			burst++
		}
	}
	if idleTTL <= 0 {
		idleTTL = DefaultLimiterIdleTTL
	}
	return &ClientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		clients: cmap.New[string, *clientBucket](),
	}
}

// Allow reports whether the client may spend one token at now.
func (l *ClientLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	b, _ := l.clients.GetOrSet(key, &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)})
	b.lastSeen.Store(now.UnixNano())
	allowed := b.limiter.AllowN(now, 1)

	if l.hits.Add(1)%evictEvery == 0 {
		l.evictIdle(now)
	}
	return allowed
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	if l == nil {
		return 0
	}
	return l.clients.Count()
}

func (l *ClientLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idleTTL).UnixNano()
	l.clients.DeleteIf(func(_ string, b *clientBucket) bool {
		return b.lastSeen.Load() < cutoff
	})
}
