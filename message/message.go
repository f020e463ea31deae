// Package message defines the JSON-RPC 1.1 envelopes exchanged with the
// UserAndJobState service.
//
// Request is the "envelope" for every call. It gets serialized by the codec
// layer and POSTed by the transport layer. Response is whatever came back,
// kept as raw JSON until the caller knows how many values to expect.
package message

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"strconv"

	"github.com/juju/errors"

	"ujs-rpc/protocol"
)

// Request carries the data for a single call.
//
// Field order is the wire order: params, method, version, id, context.
type Request struct {
	Params  []any          `json:"params"`
	Method  string         `json:"method"`            // Format: "UserAndJobState.method_name"
	Version string         `json:"version"`           // Always protocol.Version
	ID      string         `json:"id"`                // Random decimal digits
	Context map[string]any `json:"context,omitempty"` // Never set by the generated methods
}

// NewRequest builds an envelope for method with a fresh id. A nil params
// slice is sent as an empty list.
func NewRequest(method string, params []any) *Request {
	if params == nil {
		params = []any{}
	}
	return &Request{
		Params:  params,
		Method:  protocol.QualifiedName(method),
		Version: protocol.Version,
		ID:      NewID(),
	}
}

// NewID returns a random string of decimal digits.
func NewID() string {
	return strconv.FormatUint(rand.Uint64(), 10)
}

// Response is a decoded reply envelope.
//
//   - On success: Result holds the JSON list of return values.
//   - On failure: Error holds whatever the server put there, usually an
//     object with name, code, message and error members.
type Response struct {
	Version string          `json:"version,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	// Set by the client, never part of the wire form.
	URL  string `json:"-"` // Endpoint the reply came from
	Body []byte `json:"-"` // Reply exactly as received
}

// HasError reports whether the envelope carries a non-null error member.
func (r *Response) HasError() bool {
	return !isNull(r.Error)
}

// Results splits the result member into its positional values.
func (r *Response) Results() ([]json.RawMessage, error) {
	if isNull(r.Result) {
		return nil, errors.New("response has no result")
	}
	var values []json.RawMessage
	if err := json.Unmarshal(r.Result, &values); err != nil {
		return nil, errors.Annotate(err, "result is not a list")
	}
	return values, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
