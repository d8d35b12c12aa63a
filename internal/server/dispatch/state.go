package dispatch

import (
	"net/http"
	"strings"
)

// State is the per-request match bitmask. It is rebuilt for every request.
type State uint8

const (
	MethodGet State = 1 << iota
	MethodPost
	MethodPut
	MethodDelete
	// MatchMethod is set when the route accepts the request method.
	MatchMethod
	// MatchURI is set when the URI named a known route.
	MatchURI
	// MatchAuth is set when the session cookie resolved to a live session.
	MatchAuth
)

var stateNames = []struct {
	bit  State
	name string
}{
	{MethodGet, "GET"},
	{MethodPost, "POST"},
	{MethodPut, "PUT"},
	{MethodDelete, "DELETE"},
	{MatchMethod, "MATCH_METHOD"},
	{MatchURI, "MATCH_URI"},
	{MatchAuth, "MATCH_AUTH"},
}

// methodState maps an HTTP method to its bit. HEAD counts as GET; other
// methods map to no bit.
func methodState(method string) State {
	switch method {
	case http.MethodGet, http.MethodHead:
		return MethodGet
	case http.MethodPost:
		return MethodPost
	case http.MethodPut:
		return MethodPut
	case http.MethodDelete:
		return MethodDelete
	default:
		return 0
	}
}

// Has reports whether every bit of f is set.
func (s State) Has(f State) bool {
	return f != 0 && s&f == f
}

func (s State) String() string {
	if s == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
