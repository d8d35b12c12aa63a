// Package bridge executes command envelopes on behalf of the RPC and
// WebSocket surfaces.
//
// Registry is the Bridge implementation used by the server: a table of
// named commands that only runs while started. Built-in commands cover
// introspection (help, version, ping, echo) and a small key/value state
// (get, set, del, keys) kept in a storage.StateStore.
package bridge
