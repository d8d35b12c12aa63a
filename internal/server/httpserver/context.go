package httpserver

import (
	"context"
	"time"

	"github.com/yndnr/chaingate/internal/core/domain"
)

type contextKey string

const (
	contextKeySession   contextKey = "chaingate.session"
	contextKeyStartTime contextKey = "chaingate.start_time"
)

// WithSession stores the session the request authenticated with.
func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, contextKeySession, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(contextKeySession).(domain.Session)
	return s, ok
}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyStartTime, t)
}

func startTimeFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(contextKeyStartTime).(time.Time)
	return t, ok
}
