package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"ujs-rpc/message"
	"ujs-rpc/protocol"
)

// MalformedResponseError reports a reply that arrived intact at the transport
// level but is not a usable envelope: not JSON, or missing the result values
// the method promises.
type MalformedResponseError struct {
	Err  error  // Parse or shape error
	URL  string // Endpoint the request was sent to
	Body []byte // Raw response body
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.URL, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Status is the status class of the failure, always 503.
func (e *MalformedResponseError) Status() int {
	return protocol.StatusMalformedResponse
}

func malformed(resp *message.Response, err error) *MalformedResponseError {
	return &MalformedResponseError{Err: err, URL: resp.URL, Body: resp.Body}
}

// RequestFailedError reports a failed exchange: the transport gave up, the
// server answered with a non-2xx status, or the envelope carries an error.
type RequestFailedError struct {
	// Payload is the "error" member of the reply when there was one,
	// otherwise a JSON string holding a synthesized message.
	Payload    json.RawMessage
	Message    string
	StatusCode int    // HTTP status, 0 when no response was received
	URL        string // Endpoint the request was sent to
	Err        error  // Transport error, if any
}

func (e *RequestFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request failed: %s: %v", e.Message, e.Err)
	}
	return "request failed: " + e.Message
}

func (e *RequestFailedError) Unwrap() error {
	return e.Err
}

// Status is the status class of the failure, always 500.
func (e *RequestFailedError) Status() int {
	return protocol.StatusRequestFailed
}

// ServerError decodes the payload as the object the service sends on
// failure. ok is false when the payload is not such an object.
func (e *RequestFailedError) ServerError() (serr ServerError, ok bool) {
	if err := json.Unmarshal(e.Payload, &serr); err != nil {
		return ServerError{}, false
	}
	return serr, serr.Message != "" || serr.Name != ""
}

// ServerError is the error object the UserAndJobState service puts in a
// failed reply.
type ServerError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"` // Server side stack trace
}

const (
	unknownError       = "Unknown Error"
	unknownErrorPrefix = "Unknown error - "
)

// requestFailed builds the error for a failed exchange from whatever body came
// back. The "error" member is used when the body is a JSON object carrying
// one; otherwise a message is synthesized from the raw text.
func requestFailed(url string, statusCode int, body []byte, cause error) *RequestFailedError {
	e := &RequestFailedError{StatusCode: statusCode, URL: url, Err: cause}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
		e.Message = unknownError
	case json.Unmarshal(trimmed, &envelope) == nil && len(envelope.Error) > 0 && !bytes.Equal(envelope.Error, []byte("null")):
		e.Payload = envelope.Error
		e.Message = payloadMessage(envelope.Error)
		return e
	default:
		e.Message = unknownErrorPrefix + string(body)
	}
	e.Payload, _ = json.Marshal(e.Message)
	return e
}

// payloadMessage renders an error payload as text: strings as themselves,
// server error objects by their message, anything else as raw JSON.
func payloadMessage(payload json.RawMessage) string {
	var s string
	if json.Unmarshal(payload, &s) == nil {
		return s
	}
	var serr ServerError
	if json.Unmarshal(payload, &serr) == nil && serr.Message != "" {
		return serr.Message
	}
	return string(payload)
}
