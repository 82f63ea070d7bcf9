package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// Client issues HTTP calls with retry, redirect following, host failover and
// response decoding. It is configured once with instance defaults; every call
// supplies Options that are merged over them.
//
// A Client is safe for concurrent use. Calls share the transport, the
// circuit breaker and the rate limiter, but each call gets its own
// RequestConfig and AttemptState.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithEndpoint("https://api.example.com/v1"),
//	    httpclient.WithServiceName("billing"),
//	)
//
//	res, err := client.Get(ctx, httpclient.Options{
//	    Path:  "/invoices",
//	    Query: map[string]any{"status": "open"},
//	})
type Client struct {
	cfg *internalConfig

	// transport is the shared chain: otel -> breaker -> rate limit -> base.
	transport http.RoundTripper

	// built is set when the base transport was built by New, so per-call
	// connection options can derive from it.
	built *http.Transport

	breaker     CircuitBreaker
	breakerName string
	limiter     *rate.Limiter
}

// New creates a Client.
//
// Example - failover across hosts:
//
//	client := httpclient.New(httpclient.WithDefaults(httpclient.Options{
//	    Hostnames: []string{"a.example.com", "b.example.com"},
//	    Protocol:  "https",
//	}))
//
// Example - distributed circuit breaker:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	client := httpclient.New(
//	    httpclient.WithBreakerConfig(httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))),
//	)
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	c := &Client{cfg: cfg}
	c.breaker, c.breakerName = newCircuitBreaker(cfg)
	c.limiter = newRateLimiter(cfg.RateLimit)

	var base http.RoundTripper
	switch {
	case cfg.MockTransport != nil:
		base = cfg.MockTransport
	case cfg.Transport != nil:
		base = cfg.Transport
	default:
		c.built = cfg.buildTransport()
		base = c.built
	}
	c.transport = c.wrap(base)

	return c
}

// wrap layers the client's middleware over base.
func (c *Client) wrap(base http.RoundTripper) http.RoundTripper {
	wait := c.cfg.RateLimit != nil && c.cfg.RateLimit.WaitOnLimit
	limited := newRateLimitTransport(base, c.limiter, wait)
	guarded := newCircuitBreakerTransport(limited, c.cfg, c.breaker, c.breakerName)
	return newOtelTransport(guarded, c.cfg)
}

// Options returns the RequestConfig a call with overrides would start from,
// without issuing anything. Instance defaults are not modified.
func (c *Client) Options(overrides Options) (*RequestConfig, error) {
	if c.cfg.initErr != nil {
		return nil, c.cfg.initErr
	}
	cfg, err := resolveOptions(c.cfg.defaults, overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	return cfg, nil
}

// Do issues one logical call. A non-empty method overrides opts.Method.
// body is serialized according to the Content-Type header, which defaults to
// application/json.
//
// The returned error, when not nil, is an *Error whose Kind is one of the
// package sentinels:
//
//	res, err := client.Do(ctx, http.MethodPost, opts, payload)
//	if errors.Is(err, httpclient.ErrHTTPStatus) {
//	    var callErr *httpclient.Error
//	    errors.As(err, &callErr)
//	    log.Printf("status %d: %v", callErr.StatusCode, callErr.Body)
//	}
func (c *Client) Do(ctx context.Context, method string, opts Options, body any) (*Result, error) {
	if method != "" {
		opts.Method = method
	}

	cfg, err := c.Options(opts)
	if err != nil {
		return nil, newError(ErrInvalidOptions, err, cfg, nil)
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	state := newAttemptState()
	payload, err := encodeBody(body, cfg.Headers)
	if err != nil {
		return nil, newError(ErrInvalidOptions, fmt.Errorf("encode body: %w", err), cfg, state)
	}
	state.Body = payload

	return c.newEngine(cfg, state).run(ctx)
}

// Get issues a GET call.
func (c *Client) Get(ctx context.Context, opts Options) (*Result, error) {
	return c.Do(ctx, http.MethodGet, opts, nil)
}

// Head issues a HEAD call.
func (c *Client) Head(ctx context.Context, opts Options) (*Result, error) {
	return c.Do(ctx, http.MethodHead, opts, nil)
}

// Delete issues a DELETE call.
func (c *Client) Delete(ctx context.Context, opts Options) (*Result, error) {
	return c.Do(ctx, http.MethodDelete, opts, nil)
}

// Post issues a POST call with body.
func (c *Client) Post(ctx context.Context, opts Options, body any) (*Result, error) {
	return c.Do(ctx, http.MethodPost, opts, body)
}

// Put issues a PUT call with body.
func (c *Client) Put(ctx context.Context, opts Options, body any) (*Result, error) {
	return c.Do(ctx, http.MethodPut, opts, body)
}

// Patch issues a PATCH call with body.
func (c *Client) Patch(ctx context.Context, opts Options, body any) (*Result, error) {
	return c.Do(ctx, http.MethodPatch, opts, body)
}

// DoAsync issues the call in a new goroutine and returns a Future for its
// settlement.
func (c *Client) DoAsync(ctx context.Context, method string, opts Options, body any) *Future {
	f := newFuture()
	go func() {
		f.settle(c.Do(ctx, method, opts, body))
	}()
	return f
}

// CloseIdleConnections closes idle connections of the built transport.
func (c *Client) CloseIdleConnections() {
	if c.built != nil {
		c.built.CloseIdleConnections()
	}
}
