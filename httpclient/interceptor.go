package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestInterceptor modifies a physical attempt before it is sent.
// Interceptors run in registration order on every attempt, including
// retries, redirects and failover, after proxy rewriting.
//
// Common use cases:
//   - Adding authentication headers (Bearer tokens, API keys)
//   - Injecting correlation IDs
//   - Signing requests
//
// Returning an error rejects the call with ErrInterceptor.
type RequestInterceptor func(req *http.Request) error

// ResponseInterceptor inspects a response before classification.
// Returning an error rejects the call with ErrInterceptor.
type ResponseInterceptor func(resp *http.Response, req *http.Request) error

func applyRequestInterceptors(interceptors []RequestInterceptor, req *http.Request) error {
	for _, interceptor := range interceptors {
		if err := interceptor(req); err != nil {
			return err
		}
	}
	return nil
}

func applyResponseInterceptors(interceptors []ResponseInterceptor, resp *http.Response, req *http.Request) error {
	for _, interceptor := range interceptors {
		if err := interceptor(resp, req); err != nil {
			return err
		}
	}
	return nil
}

// AuthBearerInterceptor adds a static Bearer token.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}

// AuthBearerFuncInterceptor adds a Bearer token obtained per attempt, so a
// refreshed token is picked up by retries.
func AuthBearerFuncInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return func(req *http.Request) error {
		token, err := tokenFunc()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	}
}

// APIKeyInterceptor sets headerName to apiKey.
func APIKeyInterceptor(headerName, apiKey string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set(headerName, apiKey)
		return nil
	}
}

// CorrelationIDInterceptor sets headerName to a new UUID unless the
// request already carries one. Every attempt of a call keeps the same ID
// when it was set through Options.Headers.
func CorrelationIDInterceptor(headerName string) RequestInterceptor {
	return func(req *http.Request) error {
		if req.Header.Get(headerName) == "" {
			req.Header.Set(headerName, uuid.NewString())
		}
		return nil
	}
}

// UserAgentInterceptor sets the User-Agent header.
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return func(req *http.Request) error {
		req.Header.Set("User-Agent", userAgent)
		return nil
	}
}
