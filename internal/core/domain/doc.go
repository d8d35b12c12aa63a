// Package domain defines the core domain models for chaingate.
//
// Domain models are plain value types without IO dependencies:
//
//   - Session: an authenticated browser or CLI session
//   - Envelope: the normalized form of one RPC request
//   - Errors: domain error values with stable codes
//
// The session registry, the command bridge and the protocol dispatcher
// all exchange these types; none of them hold references to connection
// state.
package domain
