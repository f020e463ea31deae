package ujstest

// JSON-RPC error codes used by the service.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeServerError    = -32500
)

// Error is the error object written into failed replies. Handlers return it
// to control exactly what the client sees; any other error is reported as a
// server error carrying its text.
type Error struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"error,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}
