package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
)

// callTransport picks the transport for one call. An explicit Agent wins;
// connection-shaping options get a dedicated transport derived from the
// built one; otherwise the shared chain is used.
func (c *Client) callTransport(cfg *RequestConfig) http.RoundTripper {
	if cfg.Agent != nil {
		return c.wrap(cfg.Agent)
	}
	if c.built == nil || !cfg.shapesConnection() {
		return c.transport
	}
	return c.wrap(c.connectionTransport(cfg))
}

func (cfg *RequestConfig) shapesConnection() bool {
	return cfg.LocalAddress != "" ||
		cfg.Family != 0 ||
		cfg.SocketPath != "" ||
		cfg.RejectUnauthorized != nil
}

// connectionTransport clones the built transport for a single call. Its
// connections are not pooled since they are bound to this call's settings.
func (c *Client) connectionTransport(cfg *RequestConfig) *http.Transport {
	t := c.built.Clone()
	t.DisableKeepAlives = true

	dialer := c.cfg.dialer()
	if cfg.LocalAddress != "" {
		dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(cfg.LocalAddress)}
	}

	network := ""
	switch cfg.Family {
	case 4:
		network = "tcp4"
	case 6:
		network = "tcp6"
	}

	socketPath := cfg.SocketPath
	t.DialContext = func(ctx context.Context, nw, addr string) (net.Conn, error) {
		if socketPath != "" {
			return dialer.DialContext(ctx, "unix", socketPath)
		}
		if network != "" {
			nw = network
		}
		return dialer.DialContext(ctx, nw, addr)
	}

	if cfg.RejectUnauthorized != nil {
		tlsCfg := &tls.Config{}
		if t.TLSClientConfig != nil {
			tlsCfg = t.TLSClientConfig.Clone()
		}
		tlsCfg.InsecureSkipVerify = !*cfg.RejectUnauthorized //nolint:gosec
		t.TLSClientConfig = tlsCfg
	}

	return t
}
