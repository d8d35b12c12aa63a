// Package command defines the chaingate-cli commands with urfave/cli/v2.
//
//   - root.go: the application, global flags and the default JSON-RPC action
//   - ws.go: WebSocket command mode, one-shot or interactive
//   - session.go: login and logout
//   - api.go: reads from the /api surface
//   - password.go: hash-password for auth.users entries
//
// Any arguments that do not name a command are sent to /rpc as
// {method: arg1, params: [arg2..argN]} and the raw body is printed.
package command
