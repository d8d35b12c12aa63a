package dispatch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/server/shardserver"
)

// OnWebSocketOpen binds the session carried by the handshake cookie and
// acknowledges the connection.
func (d *Dispatcher) OnWebSocketOpen(_ context.Context, c *shardserver.Conn) {
	if hs := c.Handshake(); hs != nil {
		if s, ok := d.resolveSession(hs); ok {
			c.BindSession(s.ID)
		}
	}
	if err := c.SendText(connectedText); err != nil {
		d.logger.Debug("failed to acknowledge websocket", "conn_id", c.ID(), "error", err)
		return
	}
	d.logger.Debug("websocket opened", "conn_id", c.ID(), "remote", c.RemoteIP())
}

// OnWebSocketFrame runs the command in payload and replies with one text
// frame. The connection stays open whatever the outcome.
func (d *Dispatcher) OnWebSocketFrame(ctx context.Context, c *shardserver.Conn, payload []byte) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "dispatch.websocket")
	defer span.End()

	reply, outcome := d.frameReply(ctx, c, payload)
	if err := c.SendText(reply); err != nil {
		d.logger.Debug("failed to send websocket reply", "conn_id", c.ID(), "error", err)
	}
	d.metrics.RecordRequest("websocket", outcome)
	d.metrics.ObserveRequestDuration("websocket", time.Since(start).Seconds())
}

func (d *Dispatcher) frameReply(ctx context.Context, c *shardserver.Conn, payload []byte) (string, string) {
	if !d.limiter.Allow(c.RemoteIP(), d.now()) {
		return domain.ErrRateLimited.Text(), "error"
	}
	if d.cfg.RequireSession && !d.sessionAlive(c) {
		return domain.ErrNotAuthenticated.Text(), "error"
	}

	env, err := domain.EnvelopeFromFrame(payload)
	if err != nil {
		return domain.ErrorText(err), "error"
	}
	result, err := d.bridge.Execute(ctx, env)
	if err != nil {
		d.logger.DebugContext(ctx, "websocket command failed", "method", env.Method, "error", err)
		return domain.ErrorText(err), "error"
	}

	text, err := renderFrame(result)
	if err != nil {
		d.logger.Error("failed to encode websocket reply", "error", err)
		return domain.ErrInternalServer.Text(), "error"
	}
	return text, "ok"
}

// sessionAlive re-checks the bound session, which also marks it used.
func (d *Dispatcher) sessionAlive(c *shardserver.Conn) bool {
	id, ok := c.SessionID()
	if !ok {
		return false
	}
	_, ok = d.sessions.LookupByCookie(strconv.FormatUint(id, 10))
	return ok
}

// renderFrame encodes a successful result as JSON, strings included.
func renderFrame(result any) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
