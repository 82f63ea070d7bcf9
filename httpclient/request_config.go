package httpclient

import (
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RequestConfig is the resolved, normalized description of a logical call.
//
// A fresh RequestConfig is derived for every call. The engine mutates its
// private copy for redirects and failover, and works on per-attempt clones
// for proxy tunneling; the caller's Options are never touched.
type RequestConfig struct {
	// Protocol is the scheme without a trailing colon ("http" or "https").
	Protocol string

	// Host may carry a port ("api.example.com:8443"); Hostname wins when both are set.
	Host     string
	Hostname string
	Port     int

	// Path includes the serialized query string.
	Path string

	// Query is the flattened query that was appended to Path.
	Query map[string]string

	Headers http.Header
	Method  string
	Timeout time.Duration

	MaxRedirectCount int
	MaxRetryCount    int

	Proxy              string
	Auth               string
	Family             int
	LocalAddress       string
	SocketPath         string
	RejectUnauthorized *bool
	Agent              http.RoundTripper

	// failover alternates, consumed once by newFailover
	hosts     []string
	hostnames []string

	// absoluteTarget is the absolute-form request target of a proxied
	// attempt. Path mirrors it for observers.
	absoluteTarget string
}

// Clone returns a deep copy.
func (c *RequestConfig) Clone() *RequestConfig {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Headers = c.Headers.Clone()
	cp.Query = maps.Clone(c.Query)
	cp.hosts = append([]string(nil), c.hosts...)
	cp.hostnames = append([]string(nil), c.hostnames...)
	return &cp
}

func (c *RequestConfig) secure() bool {
	return c.Protocol == "https"
}

func (c *RequestConfig) defaultPort() int {
	if c.secure() {
		return defaultHTTPSPort
	}
	return defaultHTTPPort
}

// normalizeAddress splits a port embedded in Hostname (or Host) and fills
// Hostname, Port and Host consistently. An explicit Port wins over an
// embedded one; an embedded port that is not a number falls back to the
// scheme default.
func (c *RequestConfig) normalizeAddress() {
	name := c.Hostname
	if name == "" {
		name = c.Host
	}

	if h, p, err := net.SplitHostPort(name); err == nil {
		name = h
		if c.Port == 0 {
			if port, err := strconv.Atoi(p); err == nil && port > 0 && port <= 65535 {
				c.Port = port
			}
		}
	} else if i := strings.LastIndex(name, ":"); i > 0 && !strings.Contains(name[:i], ":") {
		// "host:" with an empty port
		name = name[:i]
	}

	if c.Port == 0 {
		c.Port = c.defaultPort()
	}
	c.Hostname = name
	c.Host = net.JoinHostPort(name, strconv.Itoa(c.Port))
}

// authority returns host[:port], omitting the port when it is the scheme default.
func (c *RequestConfig) authority() string {
	if c.Port == 0 || c.Port == c.defaultPort() {
		return bracketHost(c.Hostname)
	}
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

// proxyAuthority is the authority written into proxied requests. Ports 80
// and 443 are omitted whatever the scheme.
func (c *RequestConfig) proxyAuthority() string {
	if c.Port == 0 || c.Port == defaultHTTPPort || c.Port == defaultHTTPSPort {
		return bracketHost(c.Hostname)
	}
	return net.JoinHostPort(c.Hostname, strconv.Itoa(c.Port))
}

func bracketHost(name string) string {
	if strings.Contains(name, ":") {
		return "[" + name + "]"
	}
	return name
}

func (c *RequestConfig) requestPath() string {
	if c.Path == "" {
		return "/"
	}
	if !strings.HasPrefix(c.Path, "/") {
		return "/" + c.Path
	}
	return c.Path
}

// TargetURL returns the logical destination of the config.
func (c *RequestConfig) TargetURL() (*url.URL, error) {
	u, err := url.Parse(c.Protocol + "://" + c.authority() + c.requestPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return u, nil
}

// applyProxy rewrites an attempt copy for forward-proxy tunneling: the Host
// header keeps the original destination, the absolute target is recorded
// for the request line, and the connection address becomes the proxy.
func (c *RequestConfig) applyProxy() error {
	proxy, err := ParseEndpoint(c.Proxy)
	if err != nil {
		return err
	}

	if c.absoluteTarget == "" {
		c.Headers.Set("Host", c.proxyAuthority())
		c.absoluteTarget = c.Protocol + "://" + c.proxyAuthority() + c.requestPath()
		c.Path = c.absoluteTarget
	}

	c.Protocol = normalizeProtocol(proxy.Protocol)
	c.Hostname = proxy.Hostname
	c.Host = ""
	c.Port = proxy.Port
	c.normalizeAddress()
	return nil
}

// physicalURL is the URL handed to the transport. For proxied attempts the
// absolute target is carried in Opaque so it is written as the request line.
func (c *RequestConfig) physicalURL() (*url.URL, error) {
	if c.absoluteTarget != "" {
		return &url.URL{
			Scheme: c.Protocol,
			Host:   c.authority(),
			Opaque: c.absoluteTarget,
		}, nil
	}
	return c.TargetURL()
}
