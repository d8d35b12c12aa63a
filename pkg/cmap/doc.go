// Package cmap provides a concurrent map sharded by key hash.
//
// Each shard has its own RWMutex, so goroutines touching different keys
// rarely contend. Keys are hashed with murmur3 over their string form.
//
//	m := cmap.New[string, *bucket]()
//	b, loaded := m.GetOrSet("10.0.0.1", newBucket())
//	m.DeleteIf(func(k string, b *bucket) bool { return b.idle() })
package cmap
