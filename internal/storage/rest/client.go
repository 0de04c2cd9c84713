// Package rest implements the product catalog, cart store and order service
// over the storefront REST API.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// ErrUpstream matches every failed call to the REST API that is not a
// not-found answer.
var ErrUpstream = errors.New("upstream unavailable")

// UpstreamError describes a failed call. Status is zero when no response
// was received.
type UpstreamError struct {
	Op     string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: upstream status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is reports ErrUpstream as a match.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Client calls the REST API.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout   time.Duration
	transport http.RoundTripper
	tracer    trace.TracerProvider
}

// WithTimeout bounds every call. The default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTransport sets the base transport wrapped by the tracing transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *clientOptions) { o.transport = rt }
}

// WithTracerProvider sets the provider for client spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *clientOptions) { o.tracer = tp }
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	o := clientOptions{
		timeout:   10 * time.Second,
		transport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var otelOpts []otelhttp.Option
	if o.tracer != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracer))
	}
	return &Client{
		base: u,
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: otelhttp.NewTransport(o.transport, otelOpts...),
		},
	}, nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String()+"/api/products", http.NoBody)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: "ping", Err: err}
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return &UpstreamError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}

// call describes one request to the API.
type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     func(e *jx.Encoder)
	decode   func(d *jx.Decoder) error
	notFound error
}

func (c *Client) do(ctx context.Context, cl call) error {
	u := *c.base
	u.Path += cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader = http.NoBody
	if cl.body != nil {
		var e jx.Encoder
		cl.body(&e)
		body = bytes.NewReader(e.Bytes())
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "%s: create request", cl.op)
	}
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: cl.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound && cl.notFound != nil {
		return cl.notFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &UpstreamError{Op: cl.op, Status: resp.StatusCode}
	}
	if cl.decode == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Op: cl.op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := cl.decode(jx.DecodeBytes(data)); err != nil {
		return &UpstreamError{Op: cl.op, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}
