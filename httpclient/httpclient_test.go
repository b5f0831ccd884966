package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"

	"github.com/circleci/liveserver/o11y"
	"github.com/circleci/liveserver/testing/testcontext"
)

func TestClient_Call_DecodesString(t *testing.T) {
	ctx := testcontext.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Check(t, cmp.Equal(r.Header.Get("X-Check"), "yes"))
		_, _ = io.WriteString(w, "hello-1")
	}))
	defer server.Close()

	client := New(Config{Name: "decode"})

	var body string
	err := client.Call(ctx, Request{
		Method:  http.MethodGet,
		URL:     server.URL + "/__identify__",
		Route:   "/__identify__",
		Decoder: NewStringDecoder(&body),
		Headers: map[string]string{"X-Check": "yes"},
	})
	assert.Assert(t, err)
	assert.Check(t, cmp.Equal(body, "hello-1"))
}

func TestClient_Call_SingleAttempt(t *testing.T) {
	ctx := testcontext.Background()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{Name: "single", DisableKeepAlives: true})
	err := client.Call(ctx, Request{Method: http.MethodGet, URL: server.URL})
	assert.Check(t, HasStatusCode(err, http.StatusServiceUnavailable))
	assert.Check(t, cmp.Equal(atomic.LoadInt32(&calls), int32(1)))
}

func TestClient_Call_TooManyRequestsDoesNotAffectOtherCalls(t *testing.T) {
	ctx := testcontext.Background()

	var busyCalls int32
	busy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&busyCalls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer busy.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "fine")
	}))
	defer ok.Close()

	client := New(Config{Name: "shared", DisableKeepAlives: true})

	err := client.Call(ctx, Request{Method: http.MethodGet, URL: busy.URL})
	assert.Check(t, HasStatusCode(err, http.StatusTooManyRequests))

	var body string
	err = client.Call(ctx, Request{Method: http.MethodGet, URL: ok.URL, Decoder: NewStringDecoder(&body)})
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(body, "fine"))

	// the busy server is asked again rather than skipped
	err = client.Call(ctx, Request{Method: http.MethodGet, URL: busy.URL})
	assert.Check(t, HasStatusCode(err, http.StatusTooManyRequests))
	assert.Check(t, cmp.Equal(atomic.LoadInt32(&busyCalls), int32(2)))
}

func TestClient_Call_ConnectionRefused(t *testing.T) {
	ctx := testcontext.Background()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Assert(t, err)
	addr := l.Addr().String()
	assert.Assert(t, l.Close())

	client := New(Config{Name: "refused"})
	err = client.Call(ctx, Request{Method: http.MethodGet, URL: "http://" + addr + "/x", Route: "/x"})
	assert.Check(t, cmp.ErrorContains(err, "call: GET /x failed with:"))
	assert.Check(t, cmp.ErrorContains(err, "connection refused"))
}

func TestClient_Call_Timeout(t *testing.T) {
	ctx := testcontext.Background()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(Config{Name: "slow"})
	start := time.Now()
	err := client.Call(ctx, Request{Method: http.MethodGet, URL: server.URL, Timeout: 50 * time.Millisecond})
	assert.Check(t, errors.Is(err, context.DeadlineExceeded))
	assert.Check(t, time.Since(start) < time.Second)
}

func TestClient_Call_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(testcontext.Background())
	cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := New(Config{Name: "cancelled"})
	err := client.Call(ctx, Request{Method: http.MethodGet, URL: server.URL})
	assert.Check(t, errors.Is(err, context.Canceled))
}

func TestClient_Call_DecodeFailure(t *testing.T) {
	ctx := testcontext.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "x")
	}))
	defer server.Close()

	client := New(Config{Name: "decode-fail"})
	err := client.Call(ctx, Request{
		Method: http.MethodGet,
		URL:    server.URL,
		Route:  "/",
		Decoder: func(io.Reader) error {
			return errors.New("nope")
		},
	})
	assert.Check(t, cmp.ErrorContains(err, "call: GET / decoding failed with: nope"))
}

func TestHTTPError(t *testing.T) {
	e := &HTTPError{method: "GET", route: "/__identify__", code: http.StatusNotFound}
	var err error = e

	assert.Check(t, cmp.Equal(err.Error(), "the response from GET /__identify__ was 404 (Not Found)"))
	assert.Check(t, cmp.Equal(e.Code(), http.StatusNotFound))
	assert.Check(t, o11y.IsWarning(err))
	assert.Check(t, o11y.IsWarning(fmt.Errorf("wrapped: %w", err)))

	assert.Check(t, HasStatusCode(err, http.StatusTeapot, http.StatusNotFound))
	assert.Check(t, !HasStatusCode(err, http.StatusTeapot))
	assert.Check(t, !HasStatusCode(errors.New("plain"), http.StatusNotFound))

	var nilErr *HTTPError
	assert.Check(t, cmp.Equal(nilErr.Error(), "<nil>"))
}
