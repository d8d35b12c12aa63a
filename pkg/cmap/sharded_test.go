package cmap

import (
	"strconv"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultShardCount},
		{-4, DefaultShardCount},
		{3, DefaultShardCount},
		{8, 8},
		{64, 64},
	}
	for _, tt := range tests {
		if got := NewWithShards[string, int](tt.in).ShardCount(); got != tt.want {
			t.Errorf("NewWithShards(%d).ShardCount() = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	if !m.Has("a") {
		t.Fatal("Has(a) = false")
	}
	m.Delete("a")
	if m.Has("a") {
		t.Fatal("Has(a) after Delete = true")
	}
}

func TestGetOrSet(t *testing.T) {
	m := New[string, int]()
	v, loaded := m.GetOrSet("k", 1)
	if loaded || v != 1 {
		t.Fatalf("first GetOrSet = %d, %v", v, loaded)
	}
	v, loaded = m.GetOrSet("k", 2)
	if !loaded || v != 1 {
		t.Fatalf("second GetOrSet = %d, %v", v, loaded)
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 100; i++ {
		m.Set(i, i)
	}
	removed := m.DeleteIf(func(k, _ int) bool { return k%2 == 0 })
	if removed != 50 {
		t.Fatalf("DeleteIf removed %d, want 50", removed)
	}
	if m.Count() != 50 {
		t.Fatalf("Count() = %d, want 50", m.Count())
	}
	if m.Has(4) || !m.Has(5) {
		t.Fatal("wrong keys removed")
	}
}

func TestRangeEarlyStop(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 20; i++ {
		m.Set(strconv.Itoa(i), i)
	}
	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Fatalf("visited %d, want 5", visited)
	}
	m.Clear()
	if m.Count() != 0 {
		t.Fatalf("Count() after Clear = %d", m.Count())
	}
}

func TestConcurrentGetOrSet(t *testing.T) {
	m := New[string, *int]()
	var wg sync.WaitGroup
	results := make([]*int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := i
			results[i], _ = m.GetOrSet("shared", &v)
		}(i)
	}
	wg.Wait()
	for i := range results {
		if results[i] != results[0] {
			t.Fatal("GetOrSet returned different values for the same key")
		}
	}
}
