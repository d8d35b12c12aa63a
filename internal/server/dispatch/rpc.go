package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/server/shardserver"
)

// rpcErrorCode is the JSON-RPC server error code used for every failure.
const rpcErrorCode = -32000

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// serveRPC runs one JSON-RPC command. Failures are reported in the body;
// the status stays as preset.
func (d *Dispatcher) serveRPC(ctx context.Context, req *request, w *shardserver.ResponseBuffer, r *http.Request) string {
	req.conn.MarkSendAndClose()
	if firstSegment(r.URL.Path) != "rpc" {
		writeText(w, domain.ErrForbidden.Text())
		return "forbidden"
	}
	req.state |= MatchURI
	if req.state.Has(MethodGet) || req.state.Has(MethodPost) {
		req.state |= MatchMethod
	}

	ctx, span := d.tracer.Start(ctx, "dispatch.rpc")
	defer span.End()

	env, err := d.rpcEnvelope(req, r)
	var result any
	if err == nil {
		span.SetAttribute("rpc.method", env.Method)
		result, err = d.bridge.Execute(ctx, env)
	}
	if err != nil {
		span.RecordError(err)
		d.logger.DebugContext(ctx, "rpc failed", "error", err)
	}

	body, encErr := renderRPC(env, result, err)
	if encErr != nil {
		d.logger.Error("failed to encode rpc response", "error", encErr)
		body, _ = renderRPC(env, nil, domain.ErrInternalServer)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)

	if err != nil {
		return "error"
	}
	return "ok"
}

// rpcEnvelope applies the admission checks and builds the envelope from the
// body, or from the path when the body is empty.
func (d *Dispatcher) rpcEnvelope(req *request, r *http.Request) (*domain.Envelope, error) {
	if !d.limiter.Allow(req.conn.RemoteIP(), d.now()) {
		return nil, domain.ErrRateLimited
	}
	if d.cfg.RequireSession && !req.state.Has(MatchAuth) {
		return nil, domain.ErrNotAuthenticated
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, domain.ErrMalformedRequest.WithCause(err)
		}
		body = bytes.TrimSpace(b)
	}
	if len(body) == 0 {
		return domain.EnvelopeFromPath(r.URL.Path)
	}
	return domain.DecodeEnvelope(body)
}

// renderRPC encodes a JSON-RPC 2.0 response. env may be nil when the
// request never produced an envelope.
func renderRPC(env *domain.Envelope, result any, err error) ([]byte, error) {
	resp := rpcResponse{JSONRPC: domain.JSONRPCVersion}
	if env != nil {
		resp.ID = env.RequestID
	}
	if err != nil {
		resp.Error = &rpcError{Code: rpcErrorCode, Message: domain.ErrorText(err)}
		return json.Marshal(resp)
	}
	raw, mErr := json.Marshal(result)
	if mErr != nil {
		return nil, mErr
	}
	resp.Result = raw
	return json.Marshal(resp)
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
