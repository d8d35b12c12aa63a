package storage

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("state store closed")
	ErrEmptyKey    = errors.New("empty key")
)

// StateStore is the application state the command bridge reads and writes.
type StateStore interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan calls fn for every key with prefix in key order until fn
	// returns false. Slices passed to fn are copies.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Close releases the store.
	Close() error
}

// Config configures a BadgerStore.
type Config struct {
	// Dir is the data directory. Empty runs the store in memory.
	Dir string

	// GCInterval is the value-log GC period for on-disk stores.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the stale ratio that makes a value-log file eligible
	// for rewrite.
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// SyncWrites fsyncs every write.
	// Default: false
	SyncWrites bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		CacheSize:   64 << 20,
	}
}

// InMemory reports whether the configuration runs without a directory.
func (c Config) InMemory() bool {
	return c.Dir == ""
}
