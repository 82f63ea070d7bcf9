package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// isRedirect reports whether status asks the client to follow Location.
func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	}
	return false
}

// locationError reports a Location header that is present but cannot be
// parsed. It matches ErrRedirectMissingLocation since both leave the call
// with nowhere to go.
type locationError struct {
	location string
	err      error
}

func (e *locationError) Error() string {
	return fmt.Sprintf("invalid redirect location %q: %v", e.location, e.err)
}

func (e *locationError) Unwrap() error { return e.err }

func (e *locationError) Is(target error) bool { return target == ErrRedirectMissingLocation }

// resolveRedirect validates a redirect response and rewrites cfg to point at
// the new target. The chain in state grows by one; Tries is untouched.
func resolveRedirect(cfg *RequestConfig, state *AttemptState, header http.Header) (*url.URL, error) {
	location := header.Get("Location")
	if location == "" {
		return nil, ErrRedirectMissingLocation
	}
	if len(state.Redirects) >= cfg.MaxRedirectCount {
		return nil, ErrRedirectLimitExceeded
	}

	// protocol-relative: inherit the scheme of the previous hop
	if strings.HasPrefix(location, "//") {
		scheme := cfg.Protocol
		if n := len(state.Redirects); n > 0 {
			scheme = state.Redirects[n-1].Scheme
		}
		location = scheme + ":" + location
	}

	target, err := url.Parse(location)
	if err != nil {
		return nil, &locationError{location: header.Get("Location"), err: err}
	}
	if !target.IsAbs() {
		base, err := cfg.TargetURL()
		if err != nil {
			return nil, err
		}
		target = base.ResolveReference(target)
	}

	cfg.Protocol = normalizeProtocol(target.Scheme)
	cfg.Hostname = target.Hostname()
	cfg.Host = ""
	cfg.Port = 0
	if p := target.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			cfg.Port = port
		}
	}
	cfg.Path = target.EscapedPath()
	if target.RawQuery != "" {
		cfg.Path += "?" + target.RawQuery
	}

	state.Redirects = append(state.Redirects, target)
	return target, nil
}
