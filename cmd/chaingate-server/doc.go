// Package main provides the entry point for chaingate-server.
//
// The server accepts HTTP and WebSocket connections on one address and
// spreads them over a fixed set of worker shards:
//
//   - POST /rpc runs one JSON-RPC command through the command bridge
//   - /login and /logout manage cookie sessions
//   - /api serves read-only JSON endpoints (stats, session, version)
//   - WebSocket frames carry commands and get one reply frame each
//   - everything else is served from the document root
//
// Usage:
//
//	chaingate-server [flags]
//	chaingate-server -config /etc/chaingate/config.yaml
//
// Configuration is read from the file, then CHAINGATE_* environment
// variables, then the command line flags.
package main
