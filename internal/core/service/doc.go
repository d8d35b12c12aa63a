// Package service provides the domain services behind the protocol
// dispatcher.
//
//   - SessionRegistry: login sessions keyed by cookie id, idle sweep
//   - Authenticator: the credential check run on login
//   - ClientLimiter: per-client token buckets for command traffic
//
// All services are safe for concurrent use from every worker shard.
package service
