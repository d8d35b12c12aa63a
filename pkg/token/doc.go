// Package token provides request identifiers and log-safe fingerprints.
//
// Request ids are "req-" followed by a ULID. Fingerprints are the first 12
// hex characters of a SHA-256 digest, enough to correlate log lines
// without exposing the fingerprinted value (a session cookie, for example).
package token
