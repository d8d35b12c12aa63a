// Package dispatch routes connection events to the protocol surfaces.
//
// A Dispatcher implements shardserver.Handler. HTTP requests are
// classified by URI:
//
//	/rpc...     JSON-RPC command execution (send-and-close)
//	/login      credential check and session cookie (send-and-close)
//	/logout     session invalidation (send-and-close)
//	/api/...    restful surface (keep-alive)
//	/metrics    Prometheus exposition (send-and-close)
//	anything    static files (send-and-close)
//
// WebSocket frames are whitespace separated commands answered with one
// text frame each. The shard timer drives the session sweep.
package dispatch
