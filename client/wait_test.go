package client

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"

	"ujs-rpc/transport"
)

// statusAfter reports the job running for n polls and complete afterwards.
func statusAfter(n int32, polls *atomic.Int32) *fakeTransport {
	return &fakeTransport{respond: func(req *transport.Request) (*transport.Response, error) {
		complete := 0
		if polls.Add(1) > n {
			complete = 1
		}
		body := fmt.Sprintf(`{"result":["2013-04-26T23:52:06-0800","started","step",1,null,%d,0]}`, complete)
		return &transport.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	}}
}

func TestWaitForJob(t *testing.T) {
	c := qt.New(t)
	var polls atomic.Int32
	cl := New(WithTransport(statusAfter(2, &polls)), WithAsyncJobCheckTime(10*time.Millisecond))

	status, err := cl.WaitForJob(context.Background(), "job1")
	c.Assert(err, qt.IsNil)
	c.Assert(bool(status.Complete), qt.IsTrue)
	c.Assert(polls.Load(), qt.Equals, int32(3))
}

func TestWaitForJobUsesClock(t *testing.T) {
	c := qt.New(t)
	var polls atomic.Int32
	clk := testclock.NewClock(time.Now())
	cl := New(WithTransport(statusAfter(2, &polls)), WithAsyncJobCheckTime(time.Hour), WithClock(clk))

	done := make(chan error, 1)
	go func() {
		_, err := cl.WaitForJob(context.Background(), "job1")
		done <- err
	}()

	for i := 0; i < 2; i++ {
		c.Assert(clk.WaitAdvance(time.Hour, time.Second, 1), qt.IsNil)
	}
	select {
	case err := <-done:
		c.Assert(err, qt.IsNil)
	case <-time.After(5 * time.Second):
		c.Fatal("WaitForJob did not return after the clock advanced")
	}
	c.Assert(polls.Load(), qt.Equals, int32(3))
}

func TestWaitForJobStopsOnFailure(t *testing.T) {
	c := qt.New(t)
	var polls atomic.Int32
	ft := &fakeTransport{respond: func(req *transport.Request) (*transport.Response, error) {
		polls.Add(1)
		return &transport.Response{StatusCode: http.StatusInternalServerError, Body: []byte(`{"error":"no such job"}`)}, nil
	}}
	cl := New(WithTransport(ft), WithAsyncJobCheckTime(10*time.Millisecond))

	_, err := cl.WaitForJob(context.Background(), "job1")
	var failed *RequestFailedError
	c.Assert(errors.As(err, &failed), qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(failed.Message, qt.Equals, "no such job")
	c.Assert(polls.Load(), qt.Equals, int32(1))
}

func TestWaitForJobCancelled(t *testing.T) {
	c := qt.New(t)
	var polls atomic.Int32
	cl := New(WithTransport(statusAfter(1000, &polls)), WithAsyncJobCheckTime(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cl.WaitForJob(ctx, "job1")
	c.Assert(errors.Is(err, context.DeadlineExceeded), qt.IsTrue, qt.Commentf("%v", err))
	c.Assert(err, qt.ErrorMatches, "waiting for job job1: .*")
}
