package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func openMemStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(DefaultConfig(""), slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBadgerStore_BasicOperations(t *testing.T) {
	s := openMemStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, []byte("balance"), []byte("42")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, []byte("balance"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "42" {
		t.Errorf("Get = %q, want 42", got)
	}

	if err := s.Delete(ctx, []byte("balance")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, []byte("balance")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get after Delete error = %v, want ErrKeyNotFound", err)
	}
	if err := s.Delete(ctx, []byte("missing")); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if err := s.Set(ctx, nil, []byte("x")); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("Set(nil) error = %v, want ErrEmptyKey", err)
	}
}

func TestBadgerStore_ScanPrefix(t *testing.T) {
	s := openMemStore(t)
	ctx := context.Background()
	for _, k := range []string{"acct/a", "acct/b", "acct/c", "block/1"} {
		if err := s.Set(ctx, []byte(k), []byte(k)); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}

	var keys []string
	err := s.Scan(ctx, []byte("acct/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return len(keys) < 2
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "acct/a" || keys[1] != "acct/b" {
		t.Fatalf("Scan keys = %v", keys)
	}
}

func TestBadgerStore_OnDiskPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(DefaultConfig(dir), slog.Default())
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	if err := s.Set(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.GC(); err != nil {
		t.Fatalf("GC: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = NewBadgerStore(DefaultConfig(dir), slog.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, []byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("Get after reopen = %q, %v", got, err)
	}
}

func TestBadgerStore_ClosedStore(t *testing.T) {
	s, err := NewBadgerStore(DefaultConfig(""), nil)
	if err != nil {
		t.Fatalf("NewBadgerStore: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Get(context.Background(), []byte("k")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get on closed store error = %v, want ErrClosed", err)
	}
}

func TestBadgerStore_CanceledContext(t *testing.T) {
	s := openMemStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, []byte("k"), []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Set error = %v, want context.Canceled", err)
	}
	if _, err := s.Get(ctx, []byte("k")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get error = %v, want context.Canceled", err)
	}
	if err := s.Delete(ctx, []byte("k")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Delete error = %v, want context.Canceled", err)
	}
	if _, err := s.Get(context.Background(), []byte("k")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("canceled Set should not write, Get error = %v", err)
	}
}

func TestBadgerStore_RegisterMetrics(t *testing.T) {
	s := openMemStore(t)
	reg := prometheus.NewRegistry()
	if err := s.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 4 {
		t.Fatalf("got %d metric families, want 4", len(families))
	}
	if err := s.RegisterMetrics(reg); err == nil {
		t.Fatal("double registration should fail")
	}
}
