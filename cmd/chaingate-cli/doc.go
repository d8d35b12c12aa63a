// Package main provides the entry point for chaingate-cli.
//
// chaingate-cli sends commands to a chaingate server. With no subcommand,
// the arguments are posted to /rpc as one JSON-RPC call:
//
//	chaingate-cli help
//	chaingate-cli -s 10.0.0.5:8000 get balance
//
// The ws subcommand keeps a WebSocket open and reads commands
// interactively; login, logout, stats and session cover the rest of the
// HTTP surface.
package main
