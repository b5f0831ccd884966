// Package httpclient provides a single shot HTTP client instrumented with the o11y package,
// used to check whether a server on a given address is the one we expect.
//
// A Client holds no state between calls other than its connection pool, so one
// caller's responses never influence another caller's requests.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/circleci/liveserver/o11y"
)

// DefaultTimeout applies to a Request that does not set its own Timeout.
const DefaultTimeout = time.Second

// Config provides the client configuration
type Config struct {
	// Name is used to identify the client in spans and metrics
	Name string
	// MaxConnectionsPerHost sets the connection pool size
	MaxConnectionsPerHost int
	// DisableKeepAlives closes each connection once its response has been read.
	DisableKeepAlives bool
}

// Client is the o11y instrumented http client.
type Client struct {
	name       string
	httpClient *http.Client
}

// New creates a client configured with the config param
func New(cfg Config) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxConnectionsPerHost == 0 {
		cfg.MaxConnectionsPerHost = 10
	}
	t.MaxConnsPerHost = cfg.MaxConnectionsPerHost
	t.MaxIdleConnsPerHost = cfg.MaxConnectionsPerHost
	t.DisableKeepAlives = cfg.DisableKeepAlives

	return &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Transport: t},
	}
}

// Decoder reads a 2XX response body.
type Decoder func(r io.Reader) error

// Request is an individual http request that the Client will send
type Request struct {
	Method string
	// URL is the absolute address to call.
	URL string
	// Route is the low cardinality name used in spans and metrics. URL is used when empty.
	Route   string
	Decoder Decoder // If set will be used to decode the response body
	Headers map[string]string
	Timeout time.Duration
}

// Call makes a single attempt at the request inside its own span. If the call completed
// with a non 2XX status code then an HTTPError is returned and the body is discarded.
func (c *Client) Call(ctx context.Context, r Request) (err error) {
	if r.Route == "" {
		r.Route = r.URL
	}
	ctx, span := o11y.StartSpan(ctx, fmt.Sprintf("httpclient: %s %s", c.name, r.Route))
	defer o11y.End(span, &err)
	before := time.Now()

	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, nil)
	if err != nil {
		return err
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	span.AddRawField("http.client_name", c.name)
	span.AddRawField("http.route", r.Route)
	addReqToSpan(span, req)

	res, err := c.httpClient.Do(req)
	if err != nil {
		// url errors repeat the method and url which clutters metrics and logging
		e := &url.Error{}
		if errors.As(err, &e) {
			err = e.Err
		}
		return fmt.Errorf("call: %s %s failed with: %w", req.Method, r.Route, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if m := o11y.FromContext(ctx).MetricsProvider(); m != nil {
		_ = m.TimeInMilliseconds("httpclient",
			float64(time.Since(before).Nanoseconds())/1000000.0,
			[]string{
				"http.client_name:" + c.name,
				"http.route:" + r.Route,
				"http.method:" + r.Method,
				"http.status_code:" + strconv.Itoa(res.StatusCode),
			},
			1,
		)
	}
	span.AddRawField("http.status_code", res.StatusCode)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &HTTPError{method: req.Method, route: r.Route, code: res.StatusCode}
	}
	if r.Decoder == nil {
		return nil
	}
	if err := r.Decoder(res.Body); err != nil {
		return fmt.Errorf("call: %s %s decoding failed with: %w", req.Method, r.Route, err)
	}
	return nil
}

func addReqToSpan(span o11y.Span, req *http.Request) {
	span.AddRawField("meta.type", "http_client")
	span.AddRawField("span.kind", "Client")
	span.AddRawField("http.scheme", req.URL.Scheme)
	span.AddRawField("http.host", req.URL.Host)
	span.AddRawField("http.target", req.URL.Path)
	span.AddRawField("http.method", req.Method)
}

// NewStringDecoder decodes the response body into a string
func NewStringDecoder(resp *string) Decoder {
	return func(r io.Reader) error {
		bs, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		*resp = string(bs)
		return nil
	}
}

// HTTPError represents an error in an HTTP call when the response status code is not 2XX
type HTTPError struct {
	method string
	route  string
	code   int
}

var _ error = (*HTTPError)(nil)

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("the response from %s %s was %d (%s)",
		e.method, e.route, e.code, http.StatusText(e.code))
}

// Code returns the status code recorded in this error.
func (e *HTTPError) Code() int {
	return e.code
}

// Is reports every status as a warning. A server answering with the wrong status is
// an expected outcome of checking an address, not a fault of the caller.
func (e *HTTPError) Is(target error) bool {
	return o11y.IsWarningNoUnwrap(target)
}

// HasStatusCode tests err for HTTPError and returns true if any of the codes
// match the stored code.
func HasStatusCode(err error, codes ...int) bool {
	e := &HTTPError{}
	if errors.As(err, &e) {
		for _, code := range codes {
			if e.code == code {
				return true
			}
		}
	}
	return false
}
