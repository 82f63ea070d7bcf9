package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCurlCommand(t *testing.T) {
	type args struct {
		method string
		url    *url.URL
		header http.Header
		body   []byte
	}

	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "given simple GET, then omits the method",
			args: args{method: http.MethodGet, url: &url.URL{Scheme: "http", Host: "api.io", Path: "/v1"}},
			want: "curl 'http://api.io/v1'",
		},
		{
			name: "given POST with body and headers, then sorts headers and quotes body",
			args: args{
				method: http.MethodPost,
				url:    &url.URL{Scheme: "https", Host: "api.io", Path: "/users"},
				header: http.Header{"X-B": {"2"}, "Content-Type": {"application/json"}},
				body:   []byte(`{"name":"O'Neil"}`),
			},
			want: `curl -X POST 'https://api.io/users' -H 'Content-Type: application/json' -H 'X-B: 2' -d '{"name":"O'\''Neil"}'`,
		},
		{
			name: "given authorization header, then masks it",
			args: args{
				method: http.MethodGet,
				url:    &url.URL{Scheme: "http", Host: "api.io", Path: "/"},
				header: http.Header{"Authorization": {"Bearer secret"}},
			},
			want: "curl 'http://api.io/' -H 'Authorization: ***'",
		},
		{
			name: "given proxied attempt, then renders --proxy and the absolute target",
			args: args{
				method: http.MethodGet,
				url:    &url.URL{Scheme: "http", Host: "proxy.local:3128", Opaque: "http://api.io/v1"},
			},
			want: "curl --proxy 'http://proxy.local:3128' 'http://api.io/v1'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &http.Request{Method: tt.args.method, URL: tt.args.url, Header: tt.args.header}
			if req.Header == nil {
				req.Header = http.Header{}
			}

			assert.Equal(t, tt.want, generateCurlCommand(req, tt.args.body))
		})
	}
}

func TestCallLogger(t *testing.T) {
	tests := []struct {
		name      string
		debug     bool
		wantDebug bool
	}{
		{name: "given debug disabled, then attempts are not logged", debug: false, wantDebug: false},
		{name: "given debug enabled, then attempts are logged with call id", debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			mock := NewMockTransport().StubResponse(http.StatusOK, "", "Content-Type", "text/plain")
			client := New(
				WithMockTransport(mock),
				WithLogger(zerolog.New(&buf)),
				WithDebug(tt.debug),
			)

			res, err := client.Get(context.Background(), Options{URL: "http://test.api.io/"})
			require.NoError(t, err)

			if !tt.wantDebug {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), `"message":"HTTP request"`)
			assert.Contains(t, buf.String(), `"call_id":"`+res.State.CallID+`"`)
			assert.Contains(t, buf.String(), `"curl":"curl 'http://test.api.io/'`)
		})
	}
}

func TestLogAttempt_DisabledSkipsCurlRendering(t *testing.T) {
	logger := zerolog.New(io.Discard).Level(zerolog.InfoLevel)
	req, err := http.NewRequest(http.MethodPost, "http://test.api.io/v1", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	state := &AttemptState{Tries: 1, Body: []byte(`{"name":"test"}`)}

	allocs := testing.AllocsPerRun(100, func() {
		logAttempt(logger, req, state)
	})

	assert.Zero(t, allocs)
}
