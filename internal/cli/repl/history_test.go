package repl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistory_Add(t *testing.T) {
	h := NewHistory("")
	h.Add("ping")
	h.Add("ping")
	h.Add("keys")
	if got := strings.Join(h.Entries(), ","); got != "ping,keys" {
		t.Errorf("entries = %s", got)
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory("")
	h.maxSize = 3
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		h.Add(l)
	}
	if got := strings.Join(h.Entries(), ","); got != "c,d,e" {
		t.Errorf("entries = %s", got)
	}
}

func TestHistory_SaveLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sub", "history")
	h := NewHistory(file)
	h.Add("set k v")
	h.Add("get k")
	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded := NewHistory(file)
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := strings.Join(loaded.Entries(), ","); got != "set k v,get k" {
		t.Errorf("loaded = %s", got)
	}
}

func TestHistory_MissingFileAndMemoryOnly(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "none"))
	if err := h.Load(); err != nil {
		t.Errorf("Load() of missing file error = %v", err)
	}
	mem := NewHistory("")
	mem.Add("x")
	if err := mem.Save(); err != nil {
		t.Errorf("Save() without file error = %v", err)
	}
	if err := mem.Load(); err != nil {
		t.Errorf("Load() without file error = %v", err)
	}
}
