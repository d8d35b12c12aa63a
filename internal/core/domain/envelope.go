package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// JSONRPCVersion is the protocol version written by clients and echoed back.
const JSONRPCVersion = "2.0"

// MaxParams bounds the number of parameters accepted in one envelope.
const MaxParams = 32

// Envelope is the normalized form of one command request, whichever
// surface it arrived on.
type Envelope struct {
	// ProtocolVersion is the "jsonrpc" member, empty for frame requests.
	ProtocolVersion string `json:"jsonrpc,omitempty"`

	// RequestID is echoed verbatim in the response; nil when absent.
	RequestID json.RawMessage `json:"id,omitempty"`

	// Method names the command to run.
	Method string `json:"method"`

	// Params are the positional command arguments.
	Params []string `json:"params"`
}

// Args returns the argument vector: the method followed by its params.
func (e *Envelope) Args() []string {
	args := make([]string, 0, len(e.Params)+1)
	args = append(args, e.Method)
	return append(args, e.Params...)
}

type wireEnvelope struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// DecodeEnvelope parses a JSON-RPC request body. String params are
// unquoted; other JSON values are kept as their literal text.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var w wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, ErrMalformedRequest.WithCause(err)
	}
	if len(w.Params) > MaxParams {
		return nil, ErrMalformedRequest.WithDetails("too many params")
	}

	env := &Envelope{
		ProtocolVersion: w.JSONRPC,
		Method:          strings.TrimSpace(w.Method),
		Params:          make([]string, 0, len(w.Params)),
	}
	if len(w.ID) > 0 && !bytes.Equal(w.ID, []byte("null")) {
		env.RequestID = w.ID
	}
	for _, raw := range w.Params {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			env.Params = append(env.Params, s)
			continue
		}
		env.Params = append(env.Params, string(raw))
	}
	if env.Method == "" {
		return nil, ErrNoCommand
	}
	return env, nil
}

// EnvelopeFromPath builds an envelope from URI segments following the
// leading "rpc" segment, e.g. /rpc/get/balance -> get [balance].
func EnvelopeFromPath(path string) (*Envelope, error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) > 0 && strings.EqualFold(segs[0], "rpc") {
		segs = segs[1:]
	}
	return EnvelopeFromArgs(segs)
}

// EnvelopeFromFrame builds an envelope from a WebSocket text frame:
// whitespace separated words, the first being the method.
func EnvelopeFromFrame(payload []byte) (*Envelope, error) {
	return EnvelopeFromArgs(strings.Fields(string(payload)))
}

// EnvelopeFromArgs builds an envelope from an argument vector.
func EnvelopeFromArgs(args []string) (*Envelope, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, ErrNoCommand
	}
	if len(args)-1 > MaxParams {
		return nil, ErrMalformedRequest.WithDetails("too many params")
	}
	params := make([]string, len(args)-1)
	copy(params, args[1:])
	return &Envelope{Method: args[0], Params: params}, nil
}
