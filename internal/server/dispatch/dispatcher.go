package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/chaingate/internal/bridge"
	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/core/service"
	"github.com/yndnr/chaingate/internal/server/httpserver"
	"github.com/yndnr/chaingate/internal/server/shardserver"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
	"github.com/yndnr/chaingate/internal/telemetry/tracer"
	"github.com/yndnr/chaingate/pkg/token"
)

// Default values.
const (
	DefaultCookieName    = "2iBXdhW9rQxbnDdNQk9KdjiytM9X"
	DefaultCheckInterval = 5 * time.Second
	DefaultMetricsPath   = "/metrics"
)

// Paths and texts used by the login flow and the WebSocket surface.
const (
	loginPage     = "/login.html"
	connectedText = "connected"
	leftText      = "left"
)

// Config configures a Dispatcher.
type Config struct {
	// CookieName names the session cookie.
	CookieName string

	// CheckInterval is the session sweep period.
	CheckInterval time.Duration

	// RequireSession rejects commands from clients without a live session.
	RequireSession bool

	// BroadcastDepartures sends "left" to the remaining WebSocket clients of
	// a shard when one of them disconnects.
	BroadcastDepartures bool

	// MetricsPath is where Prometheus metrics are exposed. Empty disables.
	MetricsPath string

	// DocumentRoot is the static file root. Empty answers 403.
	DocumentRoot string

	// Workers is the shard count reported by /api/stats.
	Workers int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CookieName:    DefaultCookieName,
		CheckInterval: DefaultCheckInterval,
		MetricsPath:   DefaultMetricsPath,
		Workers:       shardserver.DefaultWorkers,
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuthenticator replaces service.AllowNonEmpty.
func WithAuthenticator(a service.Authenticator) Option {
	return func(d *Dispatcher) {
		if a != nil {
			d.auth = a
		}
	}
}

// WithRateLimiter limits /rpc requests and WebSocket frames per client IP.
func WithRateLimiter(l *service.ClientLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records request metrics and serves the registry on
// Config.MetricsPath.
func WithMetrics(m *metric.Registry) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithMetricsHandler overrides the handler served on Config.MetricsPath.
func WithMetricsHandler(h http.Handler) Option {
	return func(d *Dispatcher) { d.metricsHandler = h }
}

// WithTracer sets the tracer used for command spans.
func WithTracer(p *tracer.Provider) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.tracer = p
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// Dispatcher implements shardserver.Handler on top of the session registry
// and a command bridge.
type Dispatcher struct {
	cfg      Config
	sessions *service.SessionRegistry
	bridge   bridge.Bridge
	auth     service.Authenticator
	limiter  *service.ClientLimiter
	logger   *slog.Logger
	metrics  *metric.Registry
	tracer   *tracer.Provider
	now      func() time.Time
	started  time.Time

	api            http.Handler
	static         http.Handler
	metricsHandler http.Handler
}

var _ shardserver.Handler = (*Dispatcher)(nil)

// New creates a dispatcher.
func New(cfg Config, sessions *service.SessionRegistry, b bridge.Bridge, opts ...Option) *Dispatcher {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	d := &Dispatcher{
		cfg:      cfg,
		sessions: sessions,
		bridge:   b,
		auth:     service.AllowNonEmpty,
		logger:   slog.Default(),
		tracer:   tracer.New("chaingate/dispatch"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.started = d.now()

	d.api = httpserver.NewAPIRouter(httpserver.APIConfig{
		Logger:  d.logger,
		Metrics: d.metrics,
		Stats:   d.stats,
		Now:     d.now,
	})
	d.static = httpserver.Chain(httpserver.NewStaticHandler(cfg.DocumentRoot),
		httpserver.Recover(d.logger),
		httpserver.Instrument("static", d.metrics),
	)
	if d.metricsHandler == nil && d.metrics != nil {
		d.metricsHandler = d.metrics.Handler()
	}
	if d.metricsHandler != nil {
		d.metricsHandler = httpserver.Chain(d.metricsHandler, httpserver.Instrument("metrics", d.metrics))
	}
	return d
}

type route int

const (
	routeStatic route = iota
	routeRPC
	routeLogin
	routeLogout
	routeAPI
	routeMetrics
)

func (r route) String() string {
	switch r {
	case routeRPC:
		return "rpc"
	case routeLogin:
		return "login"
	case routeLogout:
		return "logout"
	case routeAPI:
		return "api"
	case routeMetrics:
		return "metrics"
	default:
		return "static"
	}
}

// classify picks the surface for path. /rpc matches on its first four
// characters, case-insensitively; the segment itself is checked later.
func (d *Dispatcher) classify(path string) route {
	switch {
	case len(path) >= 4 && strings.EqualFold(path[:4], "/rpc"):
		return routeRPC
	case path == "/login":
		return routeLogin
	case path == "/logout":
		return routeLogout
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return routeAPI
	case d.cfg.MetricsPath != "" && d.metricsHandler != nil && path == d.cfg.MetricsPath:
		return routeMetrics
	}
	return routeStatic
}

// request is the per-request dispatch context.
type request struct {
	state   State
	conn    *shardserver.Conn
	session domain.Session
}

type requestKey struct{}

// OnHTTPRequest implements shardserver.Handler.
func (d *Dispatcher) OnHTTPRequest(ctx context.Context, c *shardserver.Conn, w *shardserver.ResponseBuffer, r *http.Request) {
	start := time.Now()
	req := &request{state: methodState(r.Method), conn: c}
	if s, ok := d.resolveSession(r); ok {
		req.state |= MatchAuth
		req.session = s
		c.BindSession(s.ID)
		ctx = httpserver.WithSession(ctx, s)
	}
	ctx = context.WithValue(ctx, requestKey{}, req)
	r = r.WithContext(ctx)

	rt := d.classify(r.URL.Path)
	var outcome string
	switch rt {
	case routeRPC:
		outcome = d.serveRPC(ctx, req, w, r)
	case routeLogin:
		outcome = d.serveLogin(ctx, req, w, r)
	case routeLogout:
		outcome = d.serveLogout(req, w, r)
	case routeAPI:
		req.state |= MatchURI
		d.api.ServeHTTP(w, r)
	case routeMetrics:
		req.state |= MatchURI | MatchMethod
		c.MarkSendAndClose()
		d.metricsHandler.ServeHTTP(w, r)
	default:
		c.MarkSendAndClose()
		d.static.ServeHTTP(w, r)
	}

	// api, metrics and static record themselves through Instrument.
	if outcome != "" {
		d.metrics.RecordRequest(rt.String(), outcome)
		d.metrics.ObserveRequestDuration(rt.String(), time.Since(start).Seconds())
	}
	d.logger.Debug("request dispatched",
		"conn_id", c.ID(),
		"trace_id", c.TraceID(),
		"method", r.Method,
		"path", r.URL.Path,
		"route", rt.String(),
		"state", req.state.String(),
		"status", w.Status(),
	)
}

// OnTimer implements shardserver.Handler. It sweeps expired sessions and
// asks to be called again after the check interval.
func (d *Dispatcher) OnTimer(_ context.Context, now time.Time) time.Time {
	if n := d.sessions.Sweep(now); n > 0 {
		d.logger.Info("expired sessions removed", "count", n, "remaining", d.sessions.Len())
	}
	return now.Add(d.cfg.CheckInterval)
}

// OnClose implements shardserver.Handler.
func (d *Dispatcher) OnClose(_ context.Context, c *shardserver.Conn) {
	if !d.cfg.BroadcastDepartures || c.State() != shardserver.StateWebSocketOpen {
		return
	}
	n := c.BroadcastText(leftText)
	d.logger.Debug("departure broadcast", "conn_id", c.ID(), "receivers", n)
}

// resolveSession looks up the session named by the request cookie.
func (d *Dispatcher) resolveSession(r *http.Request) (domain.Session, bool) {
	ck, err := r.Cookie(d.cfg.CookieName)
	if err != nil || ck.Value == "" {
		return domain.Session{}, false
	}
	s, ok := d.sessions.LookupByCookie(ck.Value)
	if !ok {
		d.logger.Debug("session cookie not recognized", "cookie", token.Fingerprint(ck.Value))
	}
	return s, ok
}

func (d *Dispatcher) bridgeStarted() bool {
	if s, ok := d.bridge.(interface{ Started() bool }); ok {
		return s.Started()
	}
	return d.bridge != nil
}

func (d *Dispatcher) stats(ctx context.Context) httpserver.Stats {
	st := httpserver.Stats{
		Sessions:      d.sessions.Len(),
		Workers:       d.cfg.Workers,
		Shard:         -1,
		BridgeStarted: d.bridgeStarted(),
		Uptime:        d.now().Sub(d.started).Truncate(time.Second).String(),
	}
	if req, ok := ctx.Value(requestKey{}).(*request); ok {
		st.Shard = req.conn.Shard()
		st.ShardConnections = req.conn.ShardConnections()
	}
	return st
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(text))
}
