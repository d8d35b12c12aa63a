package bridge

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/storage"
)

func newStartedRegistry(t *testing.T) *Registry {
	t.Helper()
	st, err := storage.NewBadgerStore(storage.DefaultConfig(""), slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	r := NewRegistry(st)
	r.Start()
	return r
}

func exec(t *testing.T, r *Registry, args ...string) (any, error) {
	t.Helper()
	env, err := domain.EnvelopeFromArgs(args)
	if err != nil {
		t.Fatalf("EnvelopeFromArgs(%v): %v", args, err)
	}
	return r.Execute(context.Background(), env)
}

func TestRegistry_NotStarted(t *testing.T) {
	r := NewRegistry(nil)
	env := &domain.Envelope{Method: "help"}

	if _, err := r.Execute(context.Background(), env); !errors.Is(err, domain.ErrBridgeNotStarted) {
		t.Fatalf("Execute before Start error = %v, want ErrBridgeNotStarted", err)
	}

	r.Start()
	if _, err := r.Execute(context.Background(), env); err != nil {
		t.Fatalf("Execute after Start: %v", err)
	}

	r.Stop()
	if r.Started() {
		t.Fatal("Started() after Stop = true")
	}
	if _, err := r.Execute(context.Background(), env); !errors.Is(err, domain.ErrBridgeNotStarted) {
		t.Fatalf("Execute after Stop error = %v, want ErrBridgeNotStarted", err)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := newStartedRegistry(t)
	ctx := context.Background()

	if _, err := r.Execute(ctx, nil); !errors.Is(err, domain.ErrNoCommand) {
		t.Errorf("nil envelope error = %v", err)
	}
	if _, err := exec(t, r, "frobnicate"); !errors.Is(err, domain.ErrUnknownCommand) {
		t.Errorf("unknown command error = %v", err)
	}
	if _, err := exec(t, r, "get"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("get without key error = %v", err)
	}
	if _, err := exec(t, r, "ping", "extra"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("ping with args error = %v", err)
	}
}

func TestRegistry_Builtins(t *testing.T) {
	r := newStartedRegistry(t)

	got, err := exec(t, r, "PING")
	if err != nil || got != "pong" {
		t.Fatalf("ping = %v, %v", got, err)
	}

	got, err = exec(t, r, "echo", "hello", "world")
	if err != nil || got != "hello world" {
		t.Fatalf("echo = %v, %v", got, err)
	}

	got, err = exec(t, r, "help")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	usage, ok := got.(map[string]string)
	if !ok || usage["get"] != "get <key>" {
		t.Fatalf("help = %#v", got)
	}

	got, err = exec(t, r, "help", "set")
	if err != nil || got != "set <key> <value...>" {
		t.Fatalf("help set = %v, %v", got, err)
	}

	if _, err := exec(t, r, "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
}

func TestRegistry_StateCommands(t *testing.T) {
	r := newStartedRegistry(t)

	if got, err := exec(t, r, "set", "acct/alice", "10", "coins"); err != nil || got != "OK" {
		t.Fatalf("set = %v, %v", got, err)
	}
	if _, err := exec(t, r, "set", "acct/bob", "5"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := exec(t, r, "get", "acct/alice"); err != nil || got != "10 coins" {
		t.Fatalf("get = %v, %v", got, err)
	}

	got, err := exec(t, r, "keys", "acct/")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"acct/alice", "acct/bob"}) {
		t.Fatalf("keys = %v", got)
	}

	if got, err := exec(t, r, "del", "acct/alice", "acct/nobody"); err != nil || got != 1 {
		t.Fatalf("del = %v, %v", got, err)
	}
	if _, err := exec(t, r, "get", "acct/alice"); !errors.Is(err, domain.ErrCommandFailed) {
		t.Fatalf("get after del error = %v", err)
	}
}

func TestRegistry_StateCommandsWithoutStore(t *testing.T) {
	r := NewRegistry(nil)
	r.Start()
	if _, err := exec(t, r, "get", "k"); !errors.Is(err, domain.ErrStorageError) {
		t.Fatalf("get without store error = %v", err)
	}
}

func TestRegistry_RegisterAndPanic(t *testing.T) {
	r := newStartedRegistry(t)

	err := r.Register(Command{Name: "boom", Usage: "boom", MaxArgs: 0, Run: func(context.Context, *Call) (any, error) {
		panic("kaboom")
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Command{Name: "BOOM", Run: func(context.Context, *Call) (any, error) { return nil, nil }}); err == nil {
		t.Fatal("duplicate Register should fail")
	}
	if err := r.Register(Command{Name: "nop"}); err == nil {
		t.Fatal("Register without handler should fail")
	}

	_, err = exec(t, r, "boom")
	if !errors.Is(err, domain.ErrCommandFailed) {
		t.Fatalf("panicking command error = %v, want ErrCommandFailed", err)
	}
	if domain.ErrorText(err) != "command failed: kaboom" {
		t.Fatalf("ErrorText = %q", domain.ErrorText(err))
	}
}

func TestRegistry_CommandTimeout(t *testing.T) {
	r := NewRegistry(nil, WithCommandTimeout(20*time.Millisecond))
	r.Start()
	err := r.Register(Command{Name: "slow", MaxArgs: 0, Run: func(ctx context.Context, _ *Call) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	start := time.Now()
	if _, err := exec(t, r, "slow"); !errors.Is(err, domain.ErrCommandTimeout) {
		t.Fatalf("slow command error = %v, want ErrCommandTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("slow command took %v", elapsed)
	}
	if got, err := exec(t, r, "ping"); err != nil || got != "pong" {
		t.Fatalf("ping after timeout = %v, %v", got, err)
	}
}

func TestRegistry_NoCommandTimeout(t *testing.T) {
	r := NewRegistry(nil, WithCommandTimeout(0))
	r.Start()
	err := r.Register(Command{Name: "deadline", MaxArgs: 0, Run: func(ctx context.Context, _ *Call) (any, error) {
		_, ok := ctx.Deadline()
		return ok, nil
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got, err := exec(t, r, "deadline"); err != nil || got != false {
		t.Fatalf("deadline = %v, %v", got, err)
	}
}
