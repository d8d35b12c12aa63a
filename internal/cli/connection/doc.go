// Package connection talks to a running chaingate-server on behalf of
// chaingate-cli.
//
//   - http.go: JSON-RPC calls on /rpc, /api reads, login and logout
//   - websocket.go: a WebSocket command session
package connection
