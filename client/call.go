package client

import (
	"context"
	"encoding/json"
)

// Call is an asynchronous invocation started by Client.Go.
type Call struct {
	Method string
	Params []any
	Result json.RawMessage // Set when Error is nil
	Error  error
	Done   chan *Call // Receives the call exactly once when it finishes
}

// Go starts method in its own goroutine and returns immediately. The call is
// delivered on Done when it completes. Contract violations are delivered
// before Go returns and nothing is sent.
func (c *Client) Go(ctx context.Context, method string, params ...any) *Call {
	call := &Call{
		Method: method,
		Params: params,
		Done:   make(chan *Call, 1),
	}

	if _, err := checkCall(method, params); err != nil {
		call.Error = err
		call.Done <- call
		return call
	}

	go func() {
		call.Result, call.Error = c.Call(ctx, method, params...)
		call.Done <- call
	}()
	return call
}

// Then hands the outcome of the call to onResult or onError once it is done.
// Either callback may be nil. Then does not block; the callback runs on its
// own goroutine. Then consumes Done, so it must not be combined with another
// receive on it.
func (call *Call) Then(onResult func(json.RawMessage), onError func(error)) {
	go func() {
		done := <-call.Done
		if done.Error != nil {
			if onError != nil {
				onError(done.Error)
			}
			return
		}
		if onResult != nil {
			onResult(done.Result)
		}
	}()
}

// Wait blocks until the call completes or ctx is done.
func (call *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case done := <-call.Done:
		return done.Result, done.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
