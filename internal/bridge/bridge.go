package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/storage"
	"github.com/yndnr/chaingate/internal/telemetry/tracer"
)

// DefaultCommandTimeout bounds one command when no other timeout is set.
const DefaultCommandTimeout = 2 * time.Second

// Bridge runs one command envelope and returns a JSON-encodable result.
type Bridge interface {
	Execute(ctx context.Context, env *domain.Envelope) (any, error)
}

// Handler implements a command.
type Handler func(ctx context.Context, call *Call) (any, error)

// Command describes a registered command.
type Command struct {
	// Name is the method name, matched case-insensitively.
	Name string
	// Usage is the one-line synopsis shown by help.
	Usage string
	// MinArgs and MaxArgs bound len(Params). MaxArgs < 0 means unbounded.
	MinArgs int
	MaxArgs int
	// Run executes the command.
	Run Handler
}

// Call is what a Handler receives.
type Call struct {
	Envelope *domain.Envelope
	Params   []string
	State    storage.StateStore
	Registry *Registry
}

// Registry is a Bridge over a table of commands.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command

	state   storage.StateStore
	started atomic.Bool
	timeout time.Duration
	logger  *slog.Logger
	tracer  *tracer.Provider
}

var _ Bridge = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer sets the tracer used for command spans.
func WithTracer(p *tracer.Provider) Option {
	return func(r *Registry) {
		if p != nil {
			r.tracer = p
		}
	}
}

// WithCommandTimeout sets the deadline given to each command. Zero or less
// disables it.
func WithCommandTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry creates a stopped registry with the built-in commands.
// state may be nil, in which case the state commands fail.
func NewRegistry(state storage.StateStore, opts ...Option) *Registry {
	r := &Registry{
		commands: make(map[string]Command),
		state:    state,
		timeout:  DefaultCommandTimeout,
		logger:   slog.Default(),
		tracer:   tracer.New(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, c := range builtinCommands() {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a command. Names are unique.
func (r *Registry) Register(c Command) error {
	name := strings.ToLower(strings.TrimSpace(c.Name))
	if name == "" || c.Run == nil {
		return fmt.Errorf("bridge: command needs a name and a handler")
	}
	c.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		return fmt.Errorf("bridge: command %q already registered", name)
	}
	r.commands[name] = c
	return nil
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Start makes the registry accept commands.
func (r *Registry) Start() {
	if r.started.CompareAndSwap(false, true) {
		r.logger.Info("command bridge started", "commands", len(r.Commands()))
	}
}

// Stop makes further Execute calls fail with ErrBridgeNotStarted.
func (r *Registry) Stop() {
	if r.started.CompareAndSwap(true, false) {
		r.logger.Info("command bridge stopped")
	}
}

// Started reports whether the registry accepts commands.
func (r *Registry) Started() bool {
	return r.started.Load()
}

// Execute runs the command named by env.Method under the registry's
// command timeout. A panicking command is reported as ErrCommandFailed and
// one that fails after its deadline as ErrCommandTimeout.
func (r *Registry) Execute(ctx context.Context, env *domain.Envelope) (result any, err error) {
	if env == nil || env.Method == "" {
		return nil, domain.ErrNoCommand
	}
	if !r.started.Load() {
		return nil, domain.ErrBridgeNotStarted
	}
	cmd, ok := r.Lookup(env.Method)
	if !ok {
		return nil, domain.ErrUnknownCommand.WithDetails(env.Method)
	}
	n := len(env.Params)
	if n < cmd.MinArgs || (cmd.MaxArgs >= 0 && n > cmd.MaxArgs) {
		return nil, domain.ErrInvalidArgument.WithDetails("usage: " + cmd.Usage)
	}

	ctx, span := r.tracer.Start(ctx, "bridge."+cmd.Name,
		attribute.String("chaingate.method", cmd.Name),
		attribute.Int("chaingate.params", n))
	defer span.End()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("command panicked", "method", cmd.Name, "panic", p)
			result, err = nil, domain.ErrCommandFailed.WithDetails(fmt.Sprint(p))
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.logger.Warn("command timed out", "method", cmd.Name, "timeout", r.timeout)
			result, err = nil, domain.ErrCommandTimeout.WithCause(err)
		}
		span.RecordError(err)
	}()

	return cmd.Run(ctx, &Call{
		Envelope: env,
		Params:   env.Params,
		State:    r.state,
		Registry: r,
	})
}
