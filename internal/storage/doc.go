// Package storage provides the key/value state store used by the command
// bridge.
//
// BadgerStore wraps Badger v3. With an empty directory it runs fully in
// memory; with a directory it persists and runs periodic value-log GC.
// Sessions are never written here; they live only in the session
// registry.
package storage
