package cli

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brozeph/reqlib/httpclient"
)

type output struct {
	stdout string
	stderr string
}

func refusedError() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func execute(t *testing.T, mock *httpclient.MockTransport, args ...string) (output, error) {
	t.Helper()
	cmd := NewRootCmd(httpclient.WithMockTransport(mock), httpclient.WithLogger(zerolog.Nop()))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--no-color"))

	err := cmd.ExecuteContext(context.Background())
	return output{stdout: stdout.String(), stderr: stderr.String()}, err
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		mock    func() *httpclient.MockTransport
		args    []string
		wantErr string
		assert  func(t *testing.T, mock *httpclient.MockTransport, out output)
	}{
		{
			name: "given JSON response, then prints indented body and status",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusOK, `{"id":1,"tags":["a"]}`, "Content-Type", "application/json")
			},
			args: []string{"get", "http://api.test.io/items/1"},
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				assert.Equal(t, "{\n  \"id\": 1,\n  \"tags\": [\n    \"a\"\n  ]\n}\n", out.stdout)
				assert.Contains(t, out.stderr, "HTTP 200 OK (tries 1, redirects 0)")
				assert.Equal(t, http.MethodGet, mock.LastRequest().Method)
				assert.Equal(t, "/items/1", mock.LastRequest().URL.Path)
			},
		},
		{
			name: "given extract path, then prints only that value",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusOK, `{"user":{"name":"ada"}}`, "Content-Type", "application/json")
			},
			args: []string{"get", "http://api.test.io/", "--extract", "user.name"},
			assert: func(t *testing.T, _ *httpclient.MockTransport, out output) {
				assert.Equal(t, "ada\n", out.stdout)
			},
		},
		{
			name: "given extract path with no match, then fails",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusOK, `{"user":{}}`, "Content-Type", "application/json")
			},
			args:    []string{"get", "http://api.test.io/", "-e", "user.email"},
			wantErr: `no value at "user.email"`,
		},
		{
			name: "given headers and repeated query keys, then sends them",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().StubResponse(http.StatusOK, "ok", "Content-Type", "text/plain")
			},
			args: []string{
				"get", "http://api.test.io/search",
				"-H", "X-Tenant: acme",
				"-q", "term=go", "-q", "tag=a", "-q", "tag=b",
			},
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				req := mock.LastRequest()
				assert.Equal(t, "acme", req.Header.Get("X-Tenant"))
				assert.Equal(t, "tag=a,b&term=go", req.URL.RawQuery)
				assert.Equal(t, "ok\n", out.stdout)
			},
		},
		{
			name:    "given malformed header, then fails before sending",
			mock:    httpclient.NewMockTransport,
			args:    []string{"get", "http://api.test.io/", "-H", "no-colon"},
			wantErr: `invalid header "no-colon"`,
		},
		{
			name:    "given malformed query, then fails before sending",
			mock:    httpclient.NewMockTransport,
			args:    []string{"get", "http://api.test.io/", "-q", "novalue"},
			wantErr: `invalid query "novalue"`,
		},
		{
			name: "given post with data, then sends JSON body",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusCreated, `{"id":7}`, "Content-Type", "application/json")
			},
			args: []string{"post", "http://api.test.io/items", "-d", `{"name":"x"}`},
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				req := mock.LastRequest()
				body, _ := io.ReadAll(req.Body)
				assert.Equal(t, http.MethodPost, req.Method)
				assert.JSONEq(t, `{"name":"x"}`, string(body))
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
				assert.Contains(t, out.stderr, "HTTP 201 Created")
			},
		},
		{
			name: "given 404, then prints the body and fails",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().StubResponse(http.StatusNotFound, "missing", "Content-Type", "text/plain")
			},
			args:    []string{"delete", "http://api.test.io/items/9"},
			wantErr: "status 404",
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				assert.Equal(t, http.MethodDelete, mock.LastRequest().Method)
				assert.Equal(t, "missing\n", out.stdout)
				assert.Contains(t, out.stderr, "HTTP 404 Not Found")
			},
		},
		{
			name: "given max-retry 0, then a 503 is not retried",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusServiceUnavailable, "", "Content-Type", "text/plain")
			},
			args:    []string{"get", "http://api.test.io/", "--max-retry", "0"},
			wantErr: "status 503",
			assert: func(t *testing.T, mock *httpclient.MockTransport, _ output) {
				assert.Equal(t, 1, mock.RequestCount())
			},
		},
		{
			name: "given default retries, then a 503 is retried three times",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusServiceUnavailable, "", "Content-Type", "text/plain")
			},
			args:    []string{"get", "http://api.test.io/"},
			wantErr: "status 503",
			assert: func(t *testing.T, mock *httpclient.MockTransport, _ output) {
				assert.Equal(t, 4, mock.RequestCount())
			},
		},
		{
			name: "given failover hosts, then moves to the next host",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubHostError("a.test.io", refusedError()).
					StubHost("b.test.io", http.StatusOK, "from b", "Content-Type", "text/plain")
			},
			args: []string{"get", "http://unused/ping", "--host", "a.test.io", "--host", "b.test.io"},
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				assert.Equal(t, "from b\n", out.stdout)
				assert.Contains(t, out.stderr, "tries 2")
				assert.Equal(t, "/ping", mock.LastRequest().URL.Path)
			},
		},
		{
			name: "given binary response, then streams it unchanged",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().
					StubResponse(http.StatusOK, "\x00\x01raw", "Content-Type", "application/octet-stream")
			},
			args: []string{"get", "http://api.test.io/blob"},
			assert: func(t *testing.T, _ *httpclient.MockTransport, out output) {
				assert.Equal(t, "\x00\x01raw", out.stdout)
			},
		},
		{
			name: "given head, then sends HEAD",
			mock: func() *httpclient.MockTransport {
				return httpclient.NewMockTransport().StubResponse(http.StatusOK, "")
			},
			args: []string{"head", "http://api.test.io/"},
			assert: func(t *testing.T, mock *httpclient.MockTransport, out output) {
				assert.Equal(t, http.MethodHead, mock.LastRequest().Method)
				assert.Empty(t, out.stdout)
			},
		},
		{
			name:    "given no URL, then usage error",
			mock:    httpclient.NewMockTransport,
			args:    []string{"put"},
			wantErr: "accepts 1 arg(s), received 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := tt.mock()

			out, err := execute(t, mock, tt.args...)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tt.assert != nil {
				tt.assert(t, mock, out)
			}
		})
	}
}

func TestCommands_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqlib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  maxretrycount: 0
  headers:
    Authorization: [Bearer from-config]
`), 0o600))

	mock := httpclient.NewMockTransport().
		StubResponse(http.StatusBadGateway, "", "Content-Type", "text/plain")

	_, err := execute(t, mock, "get", "http://api.test.io/", "--config", path)

	require.Error(t, err)
	assert.Equal(t, 1, mock.RequestCount())
	assert.Equal(t, "Bearer from-config", mock.LastRequest().Header.Get("Authorization"))
}

func TestCommands_DataFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))

	mock := httpclient.NewMockTransport().StubResponse(http.StatusOK, "", "Content-Type", "text/plain")

	_, err := execute(t, mock, "patch", "http://api.test.io/items/1", "-d", "@"+path)

	require.NoError(t, err)
	body, _ := io.ReadAll(mock.LastRequest().Body)
	assert.Equal(t, `{"from":"file"}`, string(body))
	assert.Equal(t, http.MethodPatch, mock.LastRequest().Method)

	_, err = execute(t, mock, "put", "http://api.test.io/items/1", "-d", "@"+path+".missing")
	assert.ErrorContains(t, err, "read body file")
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, httpclient.NewMockTransport())

	require.NoError(t, err)
	assert.Contains(t, out.stdout, "reqlib sends a single logical HTTP call")
	for _, verb := range []string{"get", "head", "delete", "post", "put", "patch"} {
		assert.Contains(t, out.stdout, verb)
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "given single values, then strings", pairs: []string{"a=1", "b=2"}, want: map[string]any{"a": "1", "b": "2"}},
		{name: "given repeated key, then slice", pairs: []string{"a=1", "a=2"}, want: map[string]any{"a": []string{"1", "2"}}},
		{name: "given empty value, then kept empty", pairs: []string{"a="}, want: map[string]any{"a": ""}},
		{name: "given value with equals, then split at first", pairs: []string{"f=x=y"}, want: map[string]any{"f": "x=y"}},
		{name: "given missing equals, then error", pairs: []string{"a"}, wantErr: true},
		{name: "given empty key, then error", pairs: []string{"=1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseQuery(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
