package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// errRetryStopped is returned by the pacing policy when it gives up.
var errRetryStopped = errors.New("retry backoff stopped")

// engine runs one logical call. It owns the call's private RequestConfig and
// AttemptState and is discarded once the call settles.
//
// The call moves through these states:
//
//	Building -> Sent -> AwaitingResponse -> Redirect | Retry | Failover -> Sent
//	                                     -> Stream | Decoded | Rejected
type engine struct {
	client   *Client
	cfg      *RequestConfig
	state    *AttemptState
	failover *failover
	http     *http.Client
	backoff  backoff.BackOff
	logger   zerolog.Logger
	span     trace.Span
	start    time.Time
}

func (c *Client) newEngine(cfg *RequestConfig, state *AttemptState) *engine {
	e := &engine{
		client: c,
		cfg:    cfg,
		state:  state,
		http: &http.Client{
			Transport: c.callTransport(cfg),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: c.cfg.callLogger(state),
	}
	if c.cfg.RetryBackOff != nil {
		e.backoff = c.cfg.RetryBackOff()
	}
	return e
}

// run drives the call to a single settlement.
func (e *engine) run(ctx context.Context) (*Result, error) {
	e.start = time.Now()
	ctx, e.span = e.client.cfg.Tracer.Start(ctx, "HTTP call "+e.cfg.Method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.request.method", e.cfg.Method),
			attribute.String("http.call.id", e.state.CallID),
		),
	)

	// Building
	e.failover = newFailover(e.cfg)
	e.state.Alternates = e.failover.alternates
	e.cfg.normalizeAddress()
	if e.cfg.Hostname == "" {
		return e.reject(ctx, newError(ErrInvalidOptions, errors.New("no destination host"), e.cfg, e.state))
	}

	for {
		attempt := e.cfg.Clone()
		if attempt.Proxy != "" {
			if err := attempt.applyProxy(); err != nil {
				return e.reject(ctx, newError(ErrInvalidOptions, err, attempt, e.state))
			}
		}
		e.state.StatusCode, e.state.Header = 0, nil

		// Sent
		e.client.cfg.Observers.request(attempt, e.state)
		resp, cancel, err := e.send(ctx, attempt)
		if err != nil {
			var callErr *Error
			if errors.As(err, &callErr) {
				return e.reject(ctx, callErr)
			}
			if e.recover(ctx, attempt, err) {
				continue
			}
			return e.reject(ctx, e.transportError(err, attempt))
		}

		// AwaitingResponse
		e.state.StatusCode = resp.StatusCode
		e.state.Header = resp.Header.Clone()
		e.client.cfg.Observers.response(attempt, e.state)

		if resp.StatusCode == http.StatusUseProxy {
			discard(resp, cancel)
			return e.reject(ctx, newError(ErrProxyRequired, nil, attempt, e.state))
		}

		if isRedirect(resp.StatusCode) {
			discard(resp, cancel)
			target, err := resolveRedirect(e.cfg, e.state, resp.Header)
			if err != nil {
				return e.reject(ctx, newError(kindOf(err, ErrRedirectMissingLocation), err, attempt, e.state))
			}
			e.cfg.normalizeAddress()

			addRedirectEvent(e.span, target.String(), len(e.state.Redirects))
			e.client.cfg.Metrics.recordRedirect(ctx, e.client.cfg.baseAttributes())
			e.logger.Debug().
				Str("location", target.String()).
				Int("redirects", len(e.state.Redirects)).
				Msg("HTTP redirect")
			e.client.cfg.Observers.redirect(e.cfg, e.state)
			continue
		}

		// Stream
		if classifyResponse(resp.Header) == kindStream {
			return e.stream(ctx, attempt, resp, cancel)
		}

		// Decode
		contentType := resp.Header.Get("Content-Type")
		raw, err := readBody(resp.Body, contentType)
		_ = resp.Body.Close()
		cancel()
		if err != nil {
			if e.recover(ctx, attempt, err) {
				continue
			}
			return e.reject(ctx, e.transportError(err, attempt))
		}
		e.client.cfg.Metrics.recordResponseBodySize(ctx, int64(len(raw)), e.client.cfg.baseAttributes())

		body, err := decodeBody(raw, contentType, resp.StatusCode)
		if err != nil {
			callErr := newError(ErrResponseDecode, err, attempt, e.state)
			callErr.Body = string(raw)
			callErr.Raw = raw
			return e.reject(ctx, callErr)
		}

		if resp.StatusCode >= 500 && e.state.Tries <= e.cfg.MaxRetryCount {
			e.client.cfg.Observers.retry(attempt, e.state, body)
			if err := e.wait(ctx); err != nil {
				callErr := newError(ErrHTTPStatus, err, attempt, e.state)
				callErr.Body, callErr.Raw = body, raw
				return e.reject(ctx, callErr)
			}
			e.retried(ctx, fmt.Sprintf("status %d", resp.StatusCode))
			continue
		}

		if resp.StatusCode >= 400 {
			if resp.StatusCode >= 500 {
				e.client.cfg.Metrics.recordRetryExhausted(ctx, e.client.cfg.baseAttributes())
			}
			callErr := newError(ErrHTTPStatus, nil, attempt, e.state)
			callErr.Body, callErr.Raw = body, raw
			return e.reject(ctx, callErr)
		}

		// Decoded
		return e.resolve(ctx, &Result{
			Kind:       ResultDecoded,
			Body:       body,
			Raw:        raw,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Config:     attempt,
			State:      e.state.snapshot(),
		})
	}
}

// send dispatches one physical attempt. Failures that must not be retried
// (bad URL, interceptor errors) come back as *Error; anything else is a
// transport error. The returned cancel releases the attempt context.
func (e *engine) send(ctx context.Context, attempt *RequestConfig) (*http.Response, context.CancelFunc, error) {
	u, err := attempt.physicalURL()
	if err != nil {
		return nil, nil, newError(ErrInvalidOptions, err, attempt, e.state)
	}

	actx, cancel := context.WithTimeout(ctx, attempt.Timeout)

	var body io.Reader = http.NoBody
	if len(e.state.Body) > 0 {
		body = bytes.NewReader(e.state.Body)
	}

	req, err := http.NewRequestWithContext(actx, attempt.Method,
		(&url.URL{Scheme: u.Scheme, Host: u.Host}).String(), body)
	if err != nil {
		cancel()
		return nil, nil, newError(ErrInvalidOptions, err, attempt, e.state)
	}
	req.URL = u
	req.Host = u.Host
	req.Header = attempt.Headers.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}
	if attempt.Auth != "" {
		user, pass, _ := strings.Cut(attempt.Auth, ":")
		req.SetBasicAuth(user, pass)
	}

	if err := applyRequestInterceptors(e.client.cfg.RequestInterceptors, req); err != nil {
		cancel()
		return nil, nil, newError(ErrInterceptor, err, attempt, e.state)
	}

	logAttempt(e.logger, req, e.state)
	start := time.Now()

	resp, err := e.http.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	logResponse(e.logger, resp, time.Since(start))

	if err := applyResponseInterceptors(e.client.cfg.ResponseInterceptors, resp, req); err != nil {
		discard(resp, cancel)
		return nil, nil, newError(ErrInterceptor, err, attempt, e.state)
	}
	return resp, cancel, nil
}

// recover applies the failover and retry policies to a transport error.
// It reports whether the call should loop for another attempt.
func (e *engine) recover(ctx context.Context, attempt *RequestConfig, err error) bool {
	// The caller gave up; nothing left to retry for.
	if ctx.Err() != nil {
		return false
	}

	code := transportErrorCode(err)

	if e.failover.eligible(code, e.state.Tries) {
		e.state.Tries++
		alt := e.failover.advance(e.cfg)
		e.state.FailoverIndex = e.failover.index
		e.cfg.normalizeAddress()

		addFailoverEvent(e.span, alt, code)
		e.client.cfg.Metrics.recordFailover(ctx, code, e.client.cfg.baseAttributes())
		e.logger.Debug().
			Err(err).
			Str("code", code).
			Str("from", attempt.Hostname).
			Str("to", alt.Value).
			Int("tries", e.state.Tries).
			Msg("HTTP failover")
		return true
	}

	if e.state.Tries <= e.cfg.MaxRetryCount {
		if e.wait(ctx) != nil {
			return false
		}
		e.logger.Debug().Err(err).Str("code", code).Msg("HTTP transport error, retrying")
		e.retried(ctx, code)
		return true
	}

	e.client.cfg.Metrics.recordRetryExhausted(ctx, e.client.cfg.baseAttributes())
	return false
}

// retried records a retry and bumps Tries.
func (e *engine) retried(ctx context.Context, reason string) {
	e.state.Tries++
	addRetryEvent(e.span, e.state.Tries, reason)
	e.client.cfg.Metrics.recordRetryAttempt(ctx, e.client.cfg.baseAttributes(), e.state.Tries)
	e.logger.Debug().Int("tries", e.state.Tries).Str("reason", reason).Msg("HTTP retry")
}

// wait paces a retry. Without a configured policy retries are immediate.
func (e *engine) wait(ctx context.Context) error {
	if e.backoff == nil {
		return nil
	}

	d := e.backoff.NextBackOff()
	if d == backoff.Stop {
		return errRetryStopped
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// stream hands back a non-textual response without reading it.
func (e *engine) stream(
	ctx context.Context,
	attempt *RequestConfig,
	resp *http.Response,
	cancel context.CancelFunc,
) (*Result, error) {
	if resp.StatusCode >= 400 {
		callErr := newError(ErrStreamHTTPStatus, nil, attempt, e.state)
		callErr.Stream = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return e.reject(ctx, callErr)
	}

	cfg := e.client.cfg
	attrs := cfg.baseAttributes()
	start := e.start
	body := newStreamBody(e.span, resp.Body, cancel, func(n int64) {
		cfg.Metrics.recordResponseBodySize(ctx, n, attrs)
		cfg.Metrics.recordCallDuration(ctx, time.Since(start), "resolved", attrs)
	})

	e.logger.Debug().
		Int("status", resp.StatusCode).
		Int("tries", e.state.Tries).
		Msg("HTTP call resolved with stream")

	// The call span ends when the caller finishes with the stream.
	return &Result{
		Kind:       ResultStream,
		Stream:     body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Config:     attempt,
		State:      e.state.snapshot(),
	}, nil
}

func (e *engine) resolve(ctx context.Context, res *Result) (*Result, error) {
	e.span.SetAttributes(
		attribute.Int("http.response.status_code", res.StatusCode),
		attribute.Int("http.call.tries", e.state.Tries),
		attribute.Int("http.call.redirects", len(e.state.Redirects)),
	)
	e.span.End()
	e.client.cfg.Metrics.recordCallDuration(ctx, time.Since(e.start), "resolved", e.client.cfg.baseAttributes())
	e.logger.Debug().
		Int("status", res.StatusCode).
		Int("tries", e.state.Tries).
		Msg("HTTP call resolved")
	return res, nil
}

func (e *engine) reject(ctx context.Context, callErr *Error) (*Result, error) {
	outcome := outcomeOf(callErr.Kind)
	setSpanError(e.span, callErr, outcome)
	e.span.End()
	e.client.cfg.Metrics.recordCallDuration(ctx, time.Since(e.start), outcome, e.client.cfg.baseAttributes())
	e.logger.Debug().
		Err(callErr).
		Str("outcome", outcome).
		Int("tries", e.state.Tries).
		Msg("HTTP call rejected")
	return nil, callErr
}

func (e *engine) transportError(err error, attempt *RequestConfig) *Error {
	callErr := newError(ErrTransport, err, attempt, e.state)
	callErr.Code = transportErrorCode(err)
	return callErr
}

// kindOf returns the first package sentinel err matches, or fallback.
func kindOf(err, fallback error) error {
	for _, kind := range []error{
		ErrRedirectLimitExceeded,
		ErrRedirectMissingLocation,
		ErrInvalidOptions,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return fallback
}

func outcomeOf(kind error) string {
	switch kind {
	case ErrTransport:
		return "transport"
	case ErrProxyRequired:
		return "proxy_required"
	case ErrRedirectMissingLocation:
		return "redirect_missing_location"
	case ErrRedirectLimitExceeded:
		return "redirect_limit_exceeded"
	case ErrResponseDecode:
		return "response_decode"
	case ErrHTTPStatus:
		return "http_status"
	case ErrStreamHTTPStatus:
		return "stream_http_status"
	case ErrInterceptor:
		return "interceptor"
	default:
		return "invalid_options"
	}
}

// discard drains and closes a response that will not be returned, so the
// connection can be reused, then releases the attempt context.
func discard(resp *http.Response, cancel context.CancelFunc) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	cancel()
}

// cancelOnClose releases the attempt context when the caller closes a body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
