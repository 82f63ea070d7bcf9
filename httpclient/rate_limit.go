package httpclient

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-side rate limiting of physical attempts.
// Retries, redirects and failover attempts each consume a token.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained attempt rate.
	RequestsPerSecond float64 `koanf:"requestspersecond"`

	// Burst is the maximum number of attempts allowed at once.
	Burst int `koanf:"burst"`

	// WaitOnLimit waits for a token (bounded by the attempt timeout) instead
	// of failing with ErrRateLimited.
	WaitOnLimit bool `koanf:"waitonlimit"`
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is the transport error for an attempt rejected by the limiter.
// Its code is ERATELIMITED; it does not trigger failover.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitTransport implements http.RoundTripper with rate limiting.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

// newRateLimiter returns nil when rl disables limiting.
func newRateLimiter(rl *RateLimitConfig) *rate.Limiter {
	if rl == nil || rl.RequestsPerSecond <= 0 {
		return nil
	}
	burst := rl.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.RequestsPerSecond), burst)
}

func newRateLimitTransport(next http.RoundTripper, limiter *rate.Limiter, wait bool) http.RoundTripper {
	if limiter == nil {
		return next
	}
	return &rateLimitTransport{next: next, limiter: limiter, wait: wait}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, ErrRateLimited
		}
	} else if !t.limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}
