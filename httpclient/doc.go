// Package httpclient issues outbound HTTP calls through a configurable engine
// that follows redirects, retries failed attempts, fails over across
// alternate hosts and decodes responses.
//
// # Features
//
//   - Instance defaults merged with per-call Options (headers merge per key)
//   - Query maps flattened to bracket notation: filter[name]=x&ids=1,2
//   - Redirect following for 301, 302, 307 and 308 with a hop limit
//   - Retry of 5xx responses and transport errors up to MaxRetryCount
//   - Failover across Hosts or Hostnames on refused, reset or unresolved
//     connections
//   - Forward proxying with absolute-form request targets
//   - JSON and text decoding, with other content types returned as streams
//   - Lifecycle Observers (request, response, redirect, retry)
//   - OpenTelemetry tracing and metrics, zerolog debug logging
//   - Optional circuit breaker (local or Redis-backed) and rate limiting
//
// # Quick Start
//
//	client := httpclient.New(
//	    httpclient.WithEndpoint("https://api.example.com/v1"),
//	    httpclient.WithServiceName("billing"),
//	)
//
//	res, err := client.Get(ctx, httpclient.Options{Path: "/v1/invoices/42"})
//	if err != nil {
//	    return err
//	}
//
//	var invoice Invoice
//	err = res.Decode(&invoice)
//
// # Request Options
//
// Options identify the destination either as a URL or through discrete
// fields. When a call names any destination field, the whole destination of
// the defaults is replaced:
//
//	res, err := client.Post(ctx, httpclient.Options{
//	    Hostname: "api.example.com",
//	    Protocol: "https",
//	    Path:     "/v1/invoices",
//	    Headers:  http.Header{"X-Request-Source": {"batch"}},
//	}, invoice)
//
// Every call may override MaxRetryCount, MaxRedirectCount and Timeout.
// Timeout applies to each physical attempt, not to the whole call.
//
// # Failover
//
// Give alternates with Hostnames (or Hosts, which may carry a port). The
// first entry is tried first; refused, reset and unresolved connections
// advance to the next one, round-robin, until each alternate was tried once.
// After that the engine keeps retrying the current alternate:
//
//	client.Get(ctx, httpclient.Options{
//	    Hostnames: []string{"primary.example.com", "secondary.example.com"},
//	    Path:      "/health",
//	})
//
// # Errors
//
// Every failure is an *Error. Match its kind with errors.Is:
//
//	_, err := client.Get(ctx, opts)
//	switch {
//	case errors.Is(err, httpclient.ErrHTTPStatus):
//	    // 4xx, or 5xx after retries ran out
//	case errors.Is(err, httpclient.ErrTransport):
//	    // connection level failure; (*Error).Code holds ECONNREFUSED, ...
//	}
//
// # Observers
//
//	client := httpclient.New(httpclient.WithObserver(httpclient.ObserverFuncs{
//	    Retry: func(e httpclient.Event) {
//	        log.Printf("retrying %s, try %d", e.Config.Path, e.State.Tries)
//	    },
//	}))
//
// For Prometheus, register a PrometheusObserver.
//
// # Retry Pacing
//
// Retries happen immediately unless a pacing policy is set:
//
//	client := httpclient.New(httpclient.WithRetryPacing(httpclient.DefaultRetryPacing()))
//
// # Resilience
//
//	client := httpclient.New(
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	    httpclient.WithRateLimit(httpclient.DefaultRateLimitConfig()),
//	)
//
// An open breaker and an exhausted rate limit surface as transport errors
// with codes EBREAKEROPEN and ERATELIMITED. Neither triggers failover.
//
// # Testing
//
// MockTransport replaces the network:
//
//	mock := httpclient.NewMockTransport().
//	    StubPath("/v1/invoices/42", http.StatusOK, `{"id":42}`, "Content-Type", "application/json")
//	client := httpclient.New(httpclient.WithMockTransport(mock))
package httpclient
