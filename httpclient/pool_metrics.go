package httpclient

import "time"

// PoolStats is a snapshot of the shared connection pool settings.
//
//	stats := client.PoolStats()
//	fmt.Printf("max idle per host: %d\n", stats.MaxIdleConnsPerHost)
type PoolStats struct {
	// Managed is false when the client runs on a caller-supplied transport;
	// the other fields are then zero.
	Managed bool

	MaxIdleConns        int
	MaxIdleConnsPerHost int

	// MaxConnsPerHost of zero means unlimited.
	MaxConnsPerHost int

	IdleConnTimeout   time.Duration
	DisableKeepAlives bool
}

// PoolStats returns the pool settings of the transport built by New. Calls
// that shape their own connection (LocalAddress, Family, SocketPath,
// RejectUnauthorized) do not use this pool.
func (c *Client) PoolStats() PoolStats {
	if c.built == nil {
		return PoolStats{}
	}
	return PoolStats{
		Managed:             true,
		MaxIdleConns:        c.built.MaxIdleConns,
		MaxIdleConnsPerHost: c.built.MaxIdleConnsPerHost,
		MaxConnsPerHost:     c.built.MaxConnsPerHost,
		IdleConnTimeout:     c.built.IdleConnTimeout,
		DisableKeepAlives:   c.built.DisableKeepAlives,
	}
}
