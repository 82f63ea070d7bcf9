package httpclient

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Error kinds returned by the engine. Use errors.Is to match them:
//
//	res, err := client.Get(ctx, opts)
//	if errors.Is(err, httpclient.ErrHTTPStatus) {
//	    var reqErr *httpclient.Error
//	    errors.As(err, &reqErr)
//	    log.Printf("status %d: %s", reqErr.StatusCode, reqErr.Raw)
//	}
var (
	// ErrInvalidOptions is returned when request options fail validation.
	ErrInvalidOptions = errors.New("invalid request options")

	// ErrTransport wraps connection level failures (refused, reset, DNS, timeout).
	ErrTransport = errors.New("transport error")

	// ErrProxyRequired is returned when the server answers 305 Use Proxy.
	ErrProxyRequired = errors.New("proxy required")

	// ErrRedirectMissingLocation is returned for a redirect response without Location.
	ErrRedirectMissingLocation = errors.New("redirect requested with no location")

	// ErrRedirectLimitExceeded is returned once the redirect chain reaches MaxRedirectCount.
	ErrRedirectLimitExceeded = errors.New("maximum redirect limit exceeded")

	// ErrResponseDecode is returned when a JSON response body cannot be parsed.
	ErrResponseDecode = errors.New("unable to parse JSON from response")

	// ErrHTTPStatus is returned for a buffered response with status >= 400.
	ErrHTTPStatus = errors.New("HTTP error received")

	// ErrInterceptor is returned when a request or response interceptor fails.
	ErrInterceptor = errors.New("interceptor rejected request")

	// ErrStreamHTTPStatus is returned for a streaming response with status >= 400.
	// The open stream is attached to the Error and must be closed by the caller.
	ErrStreamHTTPStatus = errors.New("HTTP error received for streaming Content-Type")
)

// Error is the augmented error returned for every rejected call.
//
// Besides the kind sentinel and the underlying cause, it carries a snapshot of
// the resolved request configuration and attempt state at the moment of
// rejection, plus whatever response data was available.
type Error struct {
	// Kind is one of the Err* sentinels in this package.
	Kind error

	// Err is the underlying cause, if any (for example *net.OpError).
	Err error

	// Code is the transport error code (ECONNREFUSED, ENOTFOUND, ...).
	// Empty for non-transport failures.
	Code string

	// Config is the request configuration of the failing attempt.
	Config *RequestConfig

	// State is a snapshot of the attempt state.
	State *AttemptState

	// StatusCode and Header describe the last response, when one was received.
	StatusCode int
	Header     http.Header

	// Body is the decoded response body (JSON value or string), when available.
	Body any

	// Raw is the buffered response body.
	Raw []byte

	// Stream is the open response body for ErrStreamHTTPStatus.
	Stream io.ReadCloser
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil && errors.Is(e.Err, e.Kind):
		return e.Err.Error()
	case e.Code != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// newError builds an Error with snapshots of cfg and state.
func newError(kind, cause error, cfg *RequestConfig, state *AttemptState) *Error {
	e := &Error{Kind: kind, Err: cause}
	if cfg != nil {
		e.Config = cfg.Clone()
	}
	if state != nil {
		e.State = state.snapshot()
		e.StatusCode = state.StatusCode
		e.Header = state.Header.Clone()
	}
	return e
}
