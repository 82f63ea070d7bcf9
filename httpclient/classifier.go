package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/sony/gobreaker/v2"
)

// Transport error codes beyond the failover set.
const (
	CodeTimedOut     = "ETIMEDOUT"
	CodeCanceled     = "ECANCELED"
	CodeBreakerOpen  = "EBREAKEROPEN"
	CodeRateLimited  = "ERATELIMITED"
	CodeUnknownError = "EUNKNOWN"
)

// coder is implemented by errors that carry their own transport code.
type coder interface {
	Code() string
}

// transportErrorCode maps a transport failure onto a stable code.
//
// Classification order matters: typed checks first (syscall errno, DNS
// errors, context errors), then a message fallback for wrapped errors that
// lost their type on the way up.
func transportErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var c coder
	if errors.As(err, &c) && c.Code() != "" {
		return c.Code()
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return CodeConnReset
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimedOut
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return CodeBreakerOpen
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CodeTimedOut
		}
		return CodeNotFound
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimedOut
	}

	return codeFromMessage(err)
}

// codeFromMessage is a fallback for edge cases where type checks fail.
func codeFromMessage(err error) string {
	msg := strings.ToLower(err.Error())
	patterns := []struct {
		substr string
		code   string
	}{
		{"connection refused", CodeConnRefused},
		{"connection reset", CodeConnReset},
		{"broken pipe", CodeConnReset},
		{"no such host", CodeNotFound},
		{"server misbehaving", CodeNotFound},
		{"timeout", CodeTimedOut},
		{"deadline exceeded", CodeTimedOut},
	}
	for _, p := range patterns {
		if strings.Contains(msg, p.substr) {
			return p.code
		}
	}
	return CodeUnknownError
}
