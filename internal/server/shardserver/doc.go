// Package shardserver is the connection-dispatch engine.
//
// An Acceptor binds one TCP address and hands every accepted connection to
// exactly one Shard of a WorkerPool. A Shard is a single goroutine that owns
// its connections: it adopts them from its HandoffQueue, runs the protocol
// state machine for their events and performs every write on them. Each
// adopted connection also gets a reader goroutine that only parses the wire
// (HTTP requests, the WebSocket handshake, WebSocket frames) and posts
// events back to the owning shard.
//
// Protocol semantics live behind the Handler interface.
package shardserver
