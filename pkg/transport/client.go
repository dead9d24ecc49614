package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultTimeout = 30 * time.Second

	HeaderRequestID = "X-Request-ID"
)

// Request describes one JSON call against the backend.
type Request struct {
	Method string
	Path   string
	// Body is marshalled to JSON when non-nil.
	Body any
	// Timeout overrides the client default when positive.
	Timeout time.Duration
}

// Client performs JSON calls against a single backend base URL. It never
// caches, retries or logs; those policies belong to its callers.
type Client struct {
	http           *http.Client
	baseURL        string
	defaultTimeout time.Duration
	headers        http.Header
	newID          func() string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBaseURL sets the backend origin, e.g. http://localhost:8000.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithDefaultTimeout sets the timeout applied when a Request carries none.
func WithDefaultTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.defaultTimeout = timeout
		}
	}
}

// WithHeader adds a static header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithRequestIDGenerator replaces the uuid based request id source.
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New constructs a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:           &http.Client{},
		defaultTimeout: DefaultTimeout,
		headers:        make(http.Header),
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Send performs req and returns the raw 2xx response body. Failures are always
// *Error values.
func (c *Client) Send(ctx context.Context, req Request) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if req.Path == "" {
		return nil, errors.New("transport: request path is required")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, c.newID())

	// The timeout bounds the wait for response headers; reading the body is
	// bounded only by ctx.
	var timedOut atomic.Bool
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})
	resp, err := c.http.Do(httpReq)
	if err != nil {
		timer.Stop()
		return nil, c.classify(ctx, timedOut.Load(), method, req.Path, err)
	}
	if !timer.Stop() && timedOut.Load() {
		_ = resp.Body.Close()
		return nil, &Error{Kind: KindTimeout, Method: method, Path: req.Path, Err: context.DeadlineExceeded}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, false, method, req.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out := &Error{Kind: KindHTTPStatus, Method: method, Path: req.Path, Status: resp.StatusCode}
		if json.Valid(data) {
			out.Body = json.RawMessage(data)
		}
		return nil, out
	}
	return json.RawMessage(data), nil
}

func (c *Client) classify(parent context.Context, timedOut bool, method, path string, err error) error {
	out := &Error{Method: method, Path: path, Err: err}
	switch {
	case parent.Err() != nil && errors.Is(parent.Err(), context.Canceled):
		out.Kind = KindCancelled
	case parent.Err() != nil:
		// The caller's own deadline expired first.
		out.Kind = KindTimeout
	case timedOut, isTimeout(err):
		out.Kind = KindTimeout
	default:
		out.Kind = KindNetwork
	}
	return out
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
