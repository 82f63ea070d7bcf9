package httpclient

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRedirect(t *testing.T) {
	for status, want := range map[int]bool{
		301: true, 302: true, 307: true, 308: true,
		300: false, 303: false, 304: false, 305: false, 200: false,
	} {
		assert.Equal(t, want, isRedirect(status), "status %d", status)
	}
}

func TestResolveRedirect(t *testing.T) {
	type args struct {
		location  string
		redirects []*url.URL
		max       int
	}

	tests := []struct {
		name         string
		args         args
		wantProtocol string
		wantHostname string
		wantPort     int
		wantPath     string
		wantErr      error
		wantErrText  string
	}{
		{
			name:         "given absolute location, then rewrites destination",
			args:         args{location: "https://b.io:8443/next?x=1", max: 5},
			wantProtocol: "https",
			wantHostname: "b.io",
			wantPort:     8443,
			wantPath:     "/next?x=1",
		},
		{
			name:         "given protocol-relative location and no chain, then inherits config scheme",
			args:         args{location: "//b.io/next", max: 5},
			wantProtocol: "http",
			wantHostname: "b.io",
			wantPath:     "/next",
		},
		{
			name: "given protocol-relative location after a hop, then inherits last hop scheme",
			args: args{
				location:  "//c.io/next",
				redirects: []*url.URL{{Scheme: "https", Host: "b.io", Path: "/"}},
				max:       5,
			},
			wantProtocol: "https",
			wantHostname: "c.io",
			wantPath:     "/next",
		},
		{
			name:         "given relative location, then resolves against current target",
			args:         args{location: "other?y=2", max: 5},
			wantProtocol: "http",
			wantHostname: "a.io",
			wantPort:     8080,
			wantPath:     "/v1/other?y=2",
		},
		{
			name:    "given no location, then returns missing location",
			args:    args{location: "", max: 5},
			wantErr: ErrRedirectMissingLocation,
		},
		{
			name:    "given no location and chain at limit, then missing location wins",
			args:    args{location: "", redirects: []*url.URL{{}}, max: 1},
			wantErr: ErrRedirectMissingLocation,
		},
		{
			name:        "given unparsable location, then reports it as invalid",
			args:        args{location: "http://[bad/next", max: 5},
			wantErr:     ErrRedirectMissingLocation,
			wantErrText: `invalid redirect location "http://[bad/next"`,
		},
		{
			name:    "given chain at limit, then returns limit exceeded",
			args:    args{location: "/next", redirects: []*url.URL{{}}, max: 1},
			wantErr: ErrRedirectLimitExceeded,
		},
		{
			name:    "given zero limit, then first redirect exceeds it",
			args:    args{location: "/next", max: 0},
			wantErr: ErrRedirectLimitExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &RequestConfig{
				Protocol:         "http",
				Hostname:         "a.io",
				Host:             "a.io:8080",
				Port:             8080,
				Path:             "/v1/items",
				MaxRedirectCount: tt.args.max,
			}
			state := &AttemptState{Tries: 1, Redirects: tt.args.redirects}
			header := http.Header{}
			if tt.args.location != "" {
				header.Set("Location", tt.args.location)
			}

			target, err := resolveRedirect(cfg, state, header)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantErrText != "" {
					assert.Contains(t, err.Error(), tt.wantErrText)
					assert.Contains(t, newError(ErrRedirectMissingLocation, err, cfg, state).Error(), tt.wantErrText)
				}
				assert.Len(t, state.Redirects, len(tt.args.redirects))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProtocol, cfg.Protocol)
			assert.Equal(t, tt.wantHostname, cfg.Hostname)
			assert.Equal(t, tt.wantPort, cfg.Port)
			assert.Empty(t, cfg.Host)
			assert.Equal(t, tt.wantPath, cfg.Path)
			assert.Len(t, state.Redirects, len(tt.args.redirects)+1)
			assert.Equal(t, target, state.Redirects[len(state.Redirects)-1])
			assert.Equal(t, 1, state.Tries, "redirects do not count as tries")
		})
	}
}
