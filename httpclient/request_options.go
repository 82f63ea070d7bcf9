package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Request policy defaults applied after merging instance and call options.
const (
	DefaultMaxRedirectCount = 5
	DefaultMaxRetryCount    = 3
	DefaultTimeout          = 60 * time.Second

	defaultHTTPPort  = 80
	defaultHTTPSPort = 443
)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = validator.New()

// Options describes a logical request. It is used both for instance defaults
// (WithDefaults) and for per-call overrides; a field is considered set when
// it holds a non-zero value.
//
// Only the fields below are recognized. Configuration loaders drop any other key.
type Options struct {
	// Agent replaces the client transport for this call.
	Agent http.RoundTripper `koanf:"-" json:"-"`

	// Auth is basic authentication in "user:password" form.
	Auth string `koanf:"auth" json:"auth,omitempty"`

	// Family restricts dialing to IPv4 (4) or IPv6 (6).
	Family int `koanf:"family" json:"family,omitempty" validate:"omitempty,oneof=4 6"`

	// LocalAddress is the local IP to bind outgoing connections to.
	LocalAddress string `koanf:"localaddress" json:"localAddress,omitempty" validate:"omitempty,ip"`

	// Proxy is the URL of a forward proxy. Requests are tunneled in absolute form.
	Proxy string `koanf:"proxy" json:"proxy,omitempty" validate:"omitempty,url"`

	// RejectUnauthorized set to false disables TLS certificate verification.
	RejectUnauthorized *bool `koanf:"rejectunauthorized" json:"rejectUnauthorized,omitempty"`

	// SocketPath dials a unix domain socket instead of TCP.
	SocketPath string `koanf:"socketpath" json:"socketPath,omitempty"`

	// URL is a literal endpoint such as "https://api.example.com/v1/items".
	// It is parsed into the structured fields below; explicit fields win.
	URL string `koanf:"url" json:"url,omitempty"`

	Protocol string `koanf:"protocol" json:"protocol,omitempty"`
	Host     string `koanf:"host" json:"host,omitempty"`
	Hostname string `koanf:"hostname" json:"hostname,omitempty"`

	// Hosts and Hostnames hold failover alternates, tried in order.
	Hosts     []string `koanf:"hosts" json:"hosts,omitempty"`
	Hostnames []string `koanf:"hostnames" json:"hostnames,omitempty"`

	Port     int    `koanf:"port" json:"port,omitempty" validate:"gte=0,lte=65535"`
	Path     string `koanf:"path" json:"path,omitempty"`
	Pathname string `koanf:"pathname" json:"pathname,omitempty"`

	// Query values may be scalars, slices, nested maps or time.Time.
	Query map[string]any `koanf:"query" json:"query,omitempty"`

	Headers http.Header   `koanf:"headers" json:"headers,omitempty"`
	Method  string        `koanf:"method" json:"method,omitempty"`
	Timeout time.Duration `koanf:"timeout" json:"timeout,omitempty" validate:"gte=0"`

	MaxRedirectCount *int `koanf:"maxredirectcount" json:"maxRedirectCount,omitempty" validate:"omitempty,gte=0"`
	MaxRetryCount    *int `koanf:"maxretrycount" json:"maxRetryCount,omitempty" validate:"omitempty,gte=0"`
}

// Int returns a pointer to v, for MaxRedirectCount and MaxRetryCount.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for RejectUnauthorized.
func Bool(v bool) *bool { return &v }

// ParseEndpoint parses a literal endpoint into structured Options.
//
// A missing scheme defaults to http. The query string, if any, stays part of
// Path. Userinfo becomes Auth.
//
//	opts, _ := httpclient.ParseEndpoint("https://test.api.io/v1/tests?limit=10")
//	// opts.Protocol == "https", opts.Hostname == "test.api.io",
//	// opts.Path == "/v1/tests?limit=10"
func ParseEndpoint(raw string) (Options, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Options{}, fmt.Errorf("%w: empty endpoint", ErrInvalidOptions)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Options{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if u.Hostname() == "" {
		return Options{}, fmt.Errorf("%w: endpoint %q has no host", ErrInvalidOptions, raw)
	}

	opts := Options{
		Protocol: u.Scheme,
		Hostname: u.Hostname(),
		Path:     u.EscapedPath(),
	}
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			opts.Port = port
		}
	}
	if u.RawQuery != "" {
		opts.Path += "?" + u.RawQuery
	}
	if u.User != nil {
		opts.Auth = u.User.String()
		if pw, ok := u.User.Password(); ok {
			opts.Auth = u.User.Username() + ":" + pw
		}
	}
	return opts, nil
}

// expandURL folds Options.URL into the structured fields it leaves unset.
func expandURL(o Options) (Options, error) {
	if o.URL == "" {
		return o, nil
	}

	parsed, err := ParseEndpoint(o.URL)
	if err != nil {
		return o, err
	}
	o.URL = ""

	if o.Protocol == "" {
		o.Protocol = parsed.Protocol
	}
	if o.Host == "" && o.Hostname == "" && len(o.Hosts) == 0 && len(o.Hostnames) == 0 {
		o.Hostname = parsed.Hostname
		if o.Port == 0 {
			o.Port = parsed.Port
		}
	}
	if o.Path == "" && o.Pathname == "" {
		o.Path = parsed.Path
	}
	if o.Auth == "" {
		o.Auth = parsed.Auth
	}
	return o, nil
}

// mergeOptions overlays call onto defaults field by field. Headers merge per
// key with call values winning.
func mergeOptions(defaults, call Options) Options {
	out := defaults

	if call.Agent != nil {
		out.Agent = call.Agent
	}
	setString(&out.Auth, call.Auth)
	if call.Family != 0 {
		out.Family = call.Family
	}
	setString(&out.LocalAddress, call.LocalAddress)
	setString(&out.Proxy, call.Proxy)
	if call.RejectUnauthorized != nil {
		out.RejectUnauthorized = call.RejectUnauthorized
	}
	setString(&out.SocketPath, call.SocketPath)
	setString(&out.Protocol, call.Protocol)

	// A call that names its own destination replaces the whole default destination.
	if call.Host != "" || call.Hostname != "" || len(call.Hosts) > 0 || len(call.Hostnames) > 0 {
		out.Host = call.Host
		out.Hostname = call.Hostname
		out.Hosts = call.Hosts
		out.Hostnames = call.Hostnames
	}
	if call.Port != 0 {
		out.Port = call.Port
	}
	if call.Path != "" || call.Pathname != "" {
		out.Path = call.Path
		out.Pathname = call.Pathname
	}
	if call.Query != nil {
		out.Query = call.Query
	}

	if len(defaults.Headers) > 0 || len(call.Headers) > 0 {
		out.Headers = make(http.Header, len(defaults.Headers)+len(call.Headers))
		for _, h := range []http.Header{defaults.Headers, call.Headers} {
			for k, v := range h {
				out.Headers[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
			}
		}
	}

	setString(&out.Method, call.Method)
	if call.Timeout != 0 {
		out.Timeout = call.Timeout
	}
	if call.MaxRedirectCount != nil {
		out.MaxRedirectCount = call.MaxRedirectCount
	}
	if call.MaxRetryCount != nil {
		out.MaxRetryCount = call.MaxRetryCount
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// normalizeProtocol strips a trailing colon and lowercases, defaulting to http.
func normalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(p), ":"))
	if p == "" {
		return "http"
	}
	return p
}

// resolveOptions merges instance defaults with call overrides into a fresh
// RequestConfig. Neither input is modified.
func resolveOptions(defaults, call Options) (*RequestConfig, error) {
	defaults, err := expandURL(defaults)
	if err != nil {
		return nil, err
	}
	call, err = expandURL(call)
	if err != nil {
		return nil, err
	}

	merged := mergeOptions(defaults, call)
	if err := validate.Struct(merged); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	cfg := &RequestConfig{
		Protocol:           normalizeProtocol(merged.Protocol),
		Host:               merged.Host,
		Hostname:           merged.Hostname,
		Port:               merged.Port,
		Headers:            merged.Headers.Clone(),
		Method:             strings.ToUpper(merged.Method),
		Timeout:            merged.Timeout,
		MaxRedirectCount:   DefaultMaxRedirectCount,
		MaxRetryCount:      DefaultMaxRetryCount,
		Proxy:              merged.Proxy,
		Auth:               merged.Auth,
		Family:             merged.Family,
		LocalAddress:       merged.LocalAddress,
		SocketPath:         merged.SocketPath,
		RejectUnauthorized: merged.RejectUnauthorized,
		Agent:              merged.Agent,
		hosts:              append([]string(nil), merged.Hosts...),
		hostnames:          append([]string(nil), merged.Hostnames...),
	}
	if cfg.Headers == nil {
		cfg.Headers = make(http.Header)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if merged.MaxRedirectCount != nil {
		cfg.MaxRedirectCount = *merged.MaxRedirectCount
	}
	if merged.MaxRetryCount != nil {
		cfg.MaxRetryCount = *merged.MaxRetryCount
	}

	path := merged.Path
	if path == "" {
		path = merged.Pathname
	}

	query, err := flattenQuery(merged.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	cfg.Query = query
	cfg.Path = appendQuery(path, encodeQuery(query))

	return cfg, nil
}
