package service

import (
	"strconv"
	"testing"
	"time"
)

func TestNewClientLimiter_Disabled(t *testing.T) {
	var l *ClientLimiter = NewClientLimiter(0, 5, time.Minute)
	if l != nil {
		t.Fatal("NewClientLimiter(0) should return nil")
	}
	if !l.Allow("10.0.0.1", time.Now()) {
		t.Fatal("nil limiter must allow")
	}
	if l.Len() != 0 {
		t.Fatal("nil limiter Len() != 0")
	}
}

func TestClientLimiter_BurstThenDeny(t *testing.T) {
	l := NewClientLimiter(1, 2, time.Minute)
	now := time.Now()

	if !l.Allow("10.0.0.1", now) || !l.Allow("10.0.0.1", now) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("10.0.0.1", now) {
		t.Fatal("third request in the same instant should be denied")
	}
	if !l.Allow("10.0.0.2", now) {
		t.Fatal("other clients have their own bucket")
	}
	if !l.Allow("10.0.0.1", now.Add(time.Second)) {
		t.Fatal("bucket should refill after one second")
	}
	if !l.Allow("  ", now) {
		t.Fatal("blank keys are not limited")
	}
}

func TestClientLimiter_EvictsIdle(t *testing.T) {
	l := NewClientLimiter(1000, 1000, time.Minute)
	start := time.Now()
	l.Allow("idle", start)

	later := start.Add(2 * time.Minute)
	for i := 0; i < evictEvery; i++ {
		l.Allow("busy-"+strconv.Itoa(i%4), later)
	}
	if l.clients.Has("idle") {
		t.Fatal("idle client was not evicted")
	}
	if l.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", l.Len())
	}
}
