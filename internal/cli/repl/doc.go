// Package repl is the interactive mode of chaingate-cli: every line typed
// is sent as one WebSocket frame and the reply is printed.
//
//   - repl.go: read, send and print loop
//   - history.go: line history kept across runs
package repl
