// Package ujstest runs a scripted UserAndJobState endpoint for tests.
//
// Request processing pipeline:
//
//	POST → record → decode envelope → Middleware Chain → dispatch (scripted handler)
//	     → 200 {"version":"1.1","result":[...],"id":...}
//	     → 500 {"version":"1.1","error":{...},"id":...}
//
// Raw responses set with HandleRaw bypass decoding entirely, so tests can
// serve bodies no real server would.
package ujstest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"ujs-rpc/message"
	"ujs-rpc/middleware"
	"ujs-rpc/protocol"
)

// Handler serves one method. The returned values become the result list.
type Handler func(ctx context.Context, call *Call) ([]any, error)

// Call is the decoded request a Handler sees.
type Call struct {
	Method        string // Short name, e.g. "get_state"
	Params        []json.RawMessage
	ID            string
	Authorization string
}

// Param decodes the i-th positional parameter into v.
func (c *Call) Param(i int, v any) error {
	if i >= len(c.Params) {
		return errors.Errorf("%s: missing parameter %d", c.Method, i)
	}
	return errors.Trace(json.Unmarshal(c.Params[i], v))
}

// Recorded is one request as it reached the server.
type Recorded struct {
	Method        string
	Params        []json.RawMessage
	ID            string
	Version       string
	Context       json.RawMessage
	Authorization string
	ContentType   string
	Body          []byte
}

// HasAuthorization reports whether the request carried the header at all.
func (r Recorded) HasAuthorization() bool {
	return r.Authorization != ""
}

type rawResponse struct {
	status int
	body   string
}

// Server is an httptest server speaking JSON-RPC 1.1.
type Server struct {
	URL string

	mu          sync.Mutex
	handlers    map[string]Handler
	raw         map[string]rawResponse
	requests    []Recorded
	middlewares []middleware.Middleware
	logger      *zap.Logger

	srv *httptest.Server
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer starts a server with no methods. Unknown methods are answered
// with a JSON-RPC error.
func NewServer(opts ...Option) *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		raw:      make(map[string]rawResponse),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	s.URL = s.srv.URL + "/"
	return s
}

// Close shuts the server down and waits for outstanding requests.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// Handle scripts method. The name may be short or qualified.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[protocol.ShortName(method)] = h
}

// HandleResult scripts method to always return values.
func (s *Server) HandleResult(method string, values ...any) {
	if values == nil {
		values = []any{}
	}
	s.Handle(method, func(ctx context.Context, call *Call) ([]any, error) {
		return values, nil
	})
}

// HandleRaw makes method answer with exactly status and body. An empty
// method applies to every request.
func (s *Server) HandleRaw(method string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[protocol.ShortName(method)] = rawResponse{status: status, body: body}
}

// Use registers a middleware around dispatch. Middlewares are applied in the
// order they are added.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// LastRequest returns the most recent request. ok is false if there was none.
func (s *Server) LastRequest() (r Recorded, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Recorded{}, false
	}
	return s.requests[len(s.requests)-1], true
}

type authKey struct{}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var env struct {
		Params  []json.RawMessage `json:"params"`
		Method  string            `json:"method"`
		Version string            `json:"version"`
		ID      string            `json:"id"`
		Context json.RawMessage   `json:"context"`
	}
	decodeErr := json.Unmarshal(body, &env)

	rec := Recorded{
		Method:        env.Method,
		Params:        env.Params,
		ID:            env.ID,
		Version:       env.Version,
		Context:       env.Context,
		Authorization: r.Header.Get(protocol.AuthorizationHeader),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	raw, hasRaw := s.raw[protocol.ShortName(env.Method)]
	if !hasRaw {
		raw, hasRaw = s.raw[""]
	}
	handler := middleware.Chain(s.middlewares...)(s.dispatch)
	s.mu.Unlock()

	s.logger.Debug("request",
		zap.String("method", env.Method),
		zap.String("id", env.ID),
		zap.Bool("authorized", rec.HasAuthorization()))

	if hasRaw {
		w.WriteHeader(raw.status)
		io.WriteString(w, raw.body)
		return
	}
	if decodeErr != nil {
		s.writeError(w, nil, &Error{Code: CodeParseError, Name: "JSONRPCError", Message: decodeErr.Error()})
		return
	}

	req := &message.Request{
		Params:  make([]any, len(env.Params)),
		Method:  env.Method,
		Version: env.Version,
		ID:      env.ID,
	}
	for i, p := range env.Params {
		req.Params[i] = p
	}
	id, _ := json.Marshal(env.ID)

	ctx := context.WithValue(r.Context(), authKey{}, rec.Authorization)
	resp, err := handler(ctx, req)
	if err != nil {
		s.writeError(w, id, err)
		return
	}
	resp.Version = protocol.Version
	resp.ID = id
	s.write(w, http.StatusOK, resp)
}

// dispatch finds the scripted handler and runs it.
func (s *Server) dispatch(ctx context.Context, req *message.Request) (*message.Response, error) {
	service, method, err := protocol.SplitMethod(req.Method)
	if err != nil || service != protocol.ServiceName {
		return nil, &Error{Code: CodeMethodNotFound, Name: "JSONRPCError", Message: "Can not find method [" + req.Method + "] in server class"}
	}

	s.mu.Lock()
	h, ok := s.handlers[method]
	s.mu.Unlock()
	if !ok {
		return nil, &Error{Code: CodeMethodNotFound, Name: "JSONRPCError", Message: "Can not find method [" + req.Method + "] in server class"}
	}

	call := &Call{Method: method, ID: req.ID}
	call.Authorization, _ = ctx.Value(authKey{}).(string)
	for _, p := range req.Params {
		raw, _ := p.(json.RawMessage)
		call.Params = append(call.Params, raw)
	}

	values, err := h(ctx, call)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []any{}
	}
	result, err := json.Marshal(values)
	if err != nil {
		return nil, errors.Annotatef(err, "encoding %s result", method)
	}
	return &message.Response{Result: result}, nil
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, err error) {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		rpcErr = &Error{Code: CodeServerError, Name: "JSONRPCError", Message: err.Error()}
	}
	payload, _ := json.Marshal(rpcErr)
	s.write(w, http.StatusInternalServerError, &message.Response{
		Version: protocol.Version,
		ID:      id,
		Error:   payload,
	})
}

func (s *Server) write(w http.ResponseWriter, status int, resp *message.Response) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		s.logger.Warn("encoding response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protocol.ContentType)
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
