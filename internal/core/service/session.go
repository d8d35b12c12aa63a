package service

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/crypto/blake2b"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

// DefaultSessionTTL is how long a session may go unused before the sweep
// removes it.
const DefaultSessionTTL = 30 * time.Minute

// SessionRegistry holds the live login sessions.
//
// Every operation runs under one mutex for its whole duration; lookups
// advance LastUsed, so they are writes too. The scan is linear, which is
// fine for the handful of interactive sessions a node carries.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions []domain.Session
	seq      uint64
	seed     uint32

	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metric.Registry
}

// SessionOption configures a SessionRegistry.
type SessionOption func(*SessionRegistry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(r *SessionRegistry) {
		r.now = now
	}
}

// WithSessionLogger sets the registry logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(r *SessionRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSessionMetrics reports session counts to m.
func WithSessionMetrics(m *metric.Registry) SessionOption {
	return func(r *SessionRegistry) {
		r.metrics = m
	}
}

// NewSessionRegistry creates an empty registry. A non-positive ttl falls
// back to DefaultSessionTTL.
func NewSessionRegistry(ttl time.Duration, opts ...SessionOption) *SessionRegistry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	var seed [4]byte
	_, _ = rand.Read(seed[:])

	r := &SessionRegistry{
		ttl:    ttl,
		seed:   binary.LittleEndian.Uint32(seed[:]),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TTL returns the idle timeout.
func (r *SessionRegistry) TTL() time.Duration {
	return r.ttl
}

// Create records a session for an authenticated user and returns a copy.
//
// The id is a hash of the user name and a per-registry counter; collisions
// with a live session are not re-checked.
func (r *SessionRegistry) Create(user, pass string) (domain.Session, error) {
	if user == "" {
		return domain.Session{}, domain.ErrInvalidCredentials.WithDetails("empty user")
	}
	digest, err := digestPassword(pass)
	if err != nil {
		return domain.Session{}, domain.ErrInternalServer.WithCause(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var id uint64
	for id == 0 {
		r.seq++
		id = murmur3.Sum64WithSeed([]byte(user+":"+strconv.FormatUint(r.seq, 10)), r.seed)
	}
	now := r.now()
	s := domain.Session{
		ID:       id,
		Created:  now,
		LastUsed: now,
		User:     user,
		Pass:     digest,
	}
	r.sessions = append(r.sessions, s)

	r.metrics.IncSessionCreated()
	r.metrics.SetSessionsActive(len(r.sessions))
	r.logger.Debug("session created", "session_id", id, "user", user)
	return s, nil
}

// LookupByCookie finds the session named by a cookie value and marks it
// used. A value that does not parse or matches nothing is a plain miss.
func (r *SessionRegistry) LookupByCookie(value string) (domain.Session, bool) {
	id, ok := parseSessionID(value)
	if !ok {
		return domain.Session{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.sessions {
		if r.sessions[i].ID == id {
			r.sessions[i].Touch(r.now())
			return r.sessions[i], true
		}
	}
	return domain.Session{}, false
}

// Invalidate removes every session matching the cookie value and reports
// whether anything was removed. Calling it again is harmless.
func (r *SessionRegistry) Invalidate(value string) bool {
	id, ok := parseSessionID(value)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.removeLocked(func(s *domain.Session) bool { return s.ID == id })
	if removed > 0 {
		r.metrics.AddSessionsRevoked(removed)
		r.metrics.SetSessionsActive(len(r.sessions))
		r.logger.Debug("session invalidated", "session_id", id)
	}
	return removed > 0
}

// Sweep removes sessions idle for longer than the TTL at now and returns
// how many were removed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.removeLocked(func(s *domain.Session) bool { return s.IsExpired(now, r.ttl) })
	if removed > 0 {
		r.metrics.AddSessionsExpired(removed)
		r.metrics.SetSessionsActive(len(r.sessions))
		r.logger.Debug("expired sessions swept", "count", removed, "remaining", len(r.sessions))
	}
	return removed
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns copies of all live sessions.
func (r *SessionRegistry) Snapshot() []domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// removeLocked compacts r.sessions in place, dropping entries for which
// drop returns true.
func (r *SessionRegistry) removeLocked(drop func(*domain.Session) bool) int {
	kept := r.sessions[:0]
	for i := range r.sessions {
		if !drop(&r.sessions[i]) {
			kept = append(kept, r.sessions[i])
		}
	}
	removed := len(r.sessions) - len(kept)
	clear(r.sessions[len(kept):])
	r.sessions = kept
	return removed
}

func parseSessionID(value string) (uint64, bool) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// digestPassword returns blake2b$<salt>$<sum> with a random 16-byte salt.
func digestPassword(pass string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h, err := blake2b.New256(salt)
	if err != nil {
		return "", err
	}
	h.Write([]byte(pass))
	enc := base64.RawStdEncoding
	return "blake2b$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(h.Sum(nil)), nil
}
