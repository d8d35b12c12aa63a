package token

import "github.com/oklog/ulid/v2"

// RequestIDPrefix marks ids minted for HTTP requests.
const RequestIDPrefix = "req-"

// NewRequestID returns a fresh request id: the prefix and a ULID, so ids
// sort by creation time.
func NewRequestID() string {
	return RequestIDPrefix + ulid.Make().String()
}
