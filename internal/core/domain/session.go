package domain

import "time"

// Session is an authenticated session created by a successful login.
//
// A Session value handed out by the registry is a snapshot: it is valid
// for the event that asked for it and must not be retained.
type Session struct {
	// ID is the session identifier carried in the session cookie.
	ID uint64 `json:"id"`

	// Created is when the login succeeded.
	Created time.Time `json:"created"`

	// LastUsed is advanced on every authenticated lookup. Never before Created.
	LastUsed time.Time `json:"last_used"`

	// User is the login name.
	User string `json:"user"`

	// Pass is a salted digest of the login password, never the plaintext.
	Pass string `json:"-"`
}

// Touch records use of the session at now.
func (s *Session) Touch(now time.Time) {
	if now.Before(s.Created) {
		now = s.Created
	}
	s.LastUsed = now
}

// IdleFor returns how long the session has gone unused at now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastUsed)
}

// IsExpired reports whether the session has been idle strictly longer than ttl.
func (s *Session) IsExpired(now time.Time, ttl time.Duration) bool {
	return s.IdleFor(now) > ttl
}
