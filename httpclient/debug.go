package httpclient

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// generateCurlCommand creates a cURL command equivalent for an attempt.
//
// Example output:
//
//	curl -X POST 'https://api.example.com/users' -H 'Content-Type: application/json' -d '{"name":"John"}'
//
// Proxied attempts render with --proxy so the command reproduces the tunnel.
func generateCurlCommand(req *http.Request, body []byte) string {
	parts := []string{"curl"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	if req.URL.Opaque != "" {
		parts = append(parts, "--proxy", fmt.Sprintf("'%s://%s'", req.URL.Scheme, req.URL.Host))
	}
	parts = append(parts, fmt.Sprintf("'%s'", displayURL(req)))

	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			if k == "Authorization" {
				v = "***"
			}
			parts = append(parts, "-H", fmt.Sprintf("'%s: %s'", k, v))
		}
	}

	if len(body) > 0 {
		bodyStr := strings.ReplaceAll(string(body), "'", "'\\''")
		parts = append(parts, "-d", fmt.Sprintf("'%s'", bodyStr))
	}

	return strings.Join(parts, " ")
}

// callLogger returns a logger scoped to one logical call. Debug output is
// suppressed unless the client was built WithDebug(true).
func (cfg *internalConfig) callLogger(state *AttemptState) zerolog.Logger {
	l := cfg.Logger
	if !cfg.Debug {
		l = l.Level(zerolog.InfoLevel)
	}
	return l.With().Str("call_id", state.CallID).Logger()
}

func logAttempt(logger zerolog.Logger, req *http.Request, state *AttemptState) {
	ev := logger.Debug()
	if !ev.Enabled() {
		return
	}
	ev.Int("tries", state.Tries).
		Int("redirects", len(state.Redirects)).
		Str("method", req.Method).
		Str("url", displayURL(req)).
		Str("host", req.Host).
		Str("curl", generateCurlCommand(req, state.Body)).
		Msg("HTTP request")
}

func logResponse(logger zerolog.Logger, resp *http.Response, duration time.Duration) {
	logger.Debug().
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Dur("duration_ms", duration).
		Int64("content_length", resp.ContentLength).
		Msg("HTTP response")
}
