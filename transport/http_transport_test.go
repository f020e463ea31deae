package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestTransport(t *testing.T) *HTTPTransport {
	tr := NewHTTPTransport()
	t.Cleanup(tr.CloseIdleConnections)
	return tr
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)

	var gotMethod, gotAuth, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody = string(body)
		w.Write([]byte(`{"result":["ok"]}`))
	}))
	defer srv.Close()

	tr := newTestTransport(t)
	resp, err := tr.RoundTrip(context.Background(), &Request{
		URL:    srv.URL,
		Header: http.Header{"Authorization": []string{"tok"}},
		Body:   []byte(`{"method":"x"}`),
	})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.OK(), qt.IsTrue)
	c.Assert(string(resp.Body), qt.Equals, `{"result":["ok"]}`)
	c.Assert(gotMethod, qt.Equals, http.MethodPost)
	c.Assert(gotAuth, qt.Equals, "tok")
	c.Assert(gotType, qt.Equals, "application/json")
	c.Assert(gotBody, qt.Equals, `{"method":"x"}`)
}

func TestRoundTripErrorStatus(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	resp, err := newTestTransport(t).RoundTrip(context.Background(), &Request{URL: srv.URL})
	// Non-2xx is a response, not a transport error
	c.Assert(err, qt.IsNil)
	c.Assert(resp.OK(), qt.IsFalse)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusInternalServerError)
	c.Assert(string(resp.Body), qt.Equals, `{"error":"boom"}`)
}

func TestRoundTripTimeout(t *testing.T) {
	c := qt.New(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newTestTransport(t).RoundTrip(context.Background(), &Request{
		URL:     srv.URL,
		Timeout: 50 * time.Millisecond,
	})
	c.Assert(err, qt.ErrorMatches, `.*context deadline exceeded.*`)
	c.Assert(time.Since(start) < 2*time.Second, qt.IsTrue)
}

func TestRoundTripConnectionRefused(t *testing.T) {
	c := qt.New(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resp, err := newTestTransport(t).RoundTrip(context.Background(), &Request{URL: url})
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(resp, qt.IsNil)
}

func TestRoundTripConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	tr := newTestTransport(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			payload := strings.Repeat("x", n)
			resp, err := tr.RoundTrip(context.Background(), &Request{URL: srv.URL, Body: []byte(payload)})
			if err != nil {
				t.Errorf("send failed: %v", err)
				return
			}
			if string(resp.Body) != payload {
				t.Errorf("expect echo of %d bytes, got %d", n, len(resp.Body))
			}
		}(i)
	}

	wg.Wait()
}

func TestFunc(t *testing.T) {
	c := qt.New(t)

	var tr Transport = Func(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{StatusCode: 204, Body: []byte(req.URL)}, nil
	})
	resp, err := tr.RoundTrip(context.Background(), &Request{URL: "u"})
	c.Assert(err, qt.IsNil)
	c.Assert(resp.OK(), qt.IsTrue)
	c.Assert(string(resp.Body), qt.Equals, "u")
}
