// Package api is the HTTP request wrapper shared by every platform service
// client. It authenticates requests, encodes and decodes JSON, maps error
// responses to typed errors and records request metrics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/neuro-inc/apolo-cli/internal/metrics"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client sends authenticated requests to the platform.
type Client struct {
	http      *http.Client
	tokens    oauth2.TokenSource
	log       logr.Logger
	metrics   *metrics.Metrics
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenSource sets the source of bearer tokens.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the request logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records request counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeouts sets dial and response-header timeouts on a default
// transport. The overall request is not bounded so large transfers
// can stream for as long as they need.
func WithTimeouts(connect, header time.Duration) Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
		transport.ResponseHeaderTimeout = header
		c.http = &http.Client{Transport: transport}
	}
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		http:      http.DefaultClient,
		log:       logr.Discard(),
		userAgent: "apolo-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Metrics returns the metrics the client records into, possibly nil.
func (c *Client) Metrics() *metrics.Metrics {
	return c.metrics
}

// Logger returns the client's logger.
func (c *Client) Logger() logr.Logger {
	return c.log
}

// Header returns the headers an authenticated request carries, for
// transports that bypass Do such as websockets.
func (c *Client) Header() (http.Header, error) {
	h := http.Header{"User-Agent": {c.userAgent}}
	if c.tokens == nil {
		return h, nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	h.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return h, nil
}

// Token returns the current access token, refreshing it if needed.
func (c *Client) Token() (string, error) {
	if c.tokens == nil {
		return "", ErrAuthentication
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return tok.AccessToken, nil
}

// Request describes one API call.
type Request struct {
	Method string
	// URL is absolute; service clients derive it from their base URL with JoinURL.
	URL    string
	Query  url.Values
	Header http.Header

	// JSON is encoded as the request body when set. Body is used otherwise.
	JSON          any
	Body          io.Reader
	ContentLength int64

	// NoAuth skips the Authorization header, e.g. for server discovery.
	NoAuth bool
}

// JoinURL appends path elements to base.
func JoinURL(base string, elem ...string) (string, error) {
	u, err := url.JoinPath(base, elem...)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base, err)
	}
	return u, nil
}

// Do sends the request and decodes a JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer drainAndCloseBody(resp)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// Stream sends the request and returns the response with its body unread.
// Non-2xx responses are consumed and returned as typed errors. The caller
// closes the body of a successful response.
func (c *Client) Stream(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get("X-Request-Id")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveRequest(httpReq.Method, 0, elapsed)
		c.log.V(1).Info("request failed", "method", httpReq.Method, "url", redact(httpReq.URL), "request_id", requestID, "error", err.Error())
		return nil, fmt.Errorf("%s %s: %w", httpReq.Method, redact(httpReq.URL), err)
	}
	c.metrics.ObserveRequest(httpReq.Method, resp.StatusCode, elapsed)
	c.log.V(1).Info("request", "method", httpReq.Method, "url", redact(httpReq.URL), "status", resp.StatusCode,
		"duration", elapsed.String(), "request_id", requestID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer drainAndCloseBody(resp)
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, mapError(resp.StatusCode, body)
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", req.URL, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	body := req.Body
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if req.ContentLength > 0 {
		httpReq.ContentLength = req.ContentLength
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	if c.tokens != nil && !req.NoAuth {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
		}
		tok.SetAuthHeader(httpReq)
	}
	return httpReq, nil
}

// redact drops the query string, which may carry signed parameters.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.User = nil
	return c.String()
}

func drainAndCloseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
