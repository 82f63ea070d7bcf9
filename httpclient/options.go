package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/brozeph/reqlib/httpclient"
)

// =============================================================================
// Config - HTTP Transport Configuration
// =============================================================================

// Config holds the connection pool and dial settings of the shared transport.
// Per-call policy (timeout, retries, redirects) lives in Options instead.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.MaxIdleConnsPerHost = 50
//
//	client := httpclient.New(httpclient.WithConfig(cfg))
type Config struct {
	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts combined.
	//
	// Default: 100
	MaxIdleConns int `koanf:"maxidleconns"`

	// MaxIdleConnsPerHost controls the maximum idle connections kept per host.
	// With failover alternates each alternate counts as a separate host.
	//
	// Default: 20
	MaxIdleConnsPerHost int `koanf:"maxidleconnsperhost"`

	// MaxConnsPerHost limits idle plus active connections per host.
	// Zero means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int `koanf:"maxconnsperhost"`

	// IdleConnTimeout is how long an idle connection remains in the pool.
	//
	// Default: 90s
	IdleConnTimeout time.Duration `koanf:"idleconntimeout"`

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration `koanf:"tlshandshaketimeout"`

	// ResponseHeaderTimeout bounds the wait for response headers after the
	// request is written. Zero defers to the per-call timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration `koanf:"responseheadertimeout"`

	// DialTimeout bounds TCP connection establishment. Keep it well below the
	// per-call timeout so refused or unreachable alternates fail over quickly.
	//
	// Default: 5s
	DialTimeout time.Duration `koanf:"dialtimeout"`

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration `koanf:"keepalive"`

	// DisableKeepAlives forces a new connection per attempt.
	//
	// Default: false
	DisableKeepAlives bool `koanf:"disablekeepalives"`

	// DisableCompression turns off transparent gzip negotiation.
	//
	// Default: true
	DisableCompression bool `koanf:"disablecompression"`
}

// DefaultConfig returns balanced transport settings for general use.
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		DisableCompression:  true,
	}
}

// HighThroughputConfig returns settings for many concurrent calls to the
// same destinations: larger pools and no per-host connection cap.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 100
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	return cfg
}

// LowLatencyConfig returns settings that fail fast, so failover to the next
// alternate happens quickly.
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConns = 50
	cfg.MaxIdleConnsPerHost = 25
	cfg.MaxConnsPerHost = 50
	cfg.IdleConnTimeout = 60 * time.Second
	cfg.TLSHandshakeTimeout = 5 * time.Second
	cfg.ResponseHeaderTimeout = 3 * time.Second
	cfg.DialTimeout = 2 * time.Second
	cfg.KeepAlive = 15 * time.Second
	return cfg
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds everything a Client is built from.
type internalConfig struct {
	httpConfig Config

	// defaults are the instance-level request options merged under every call.
	defaults Options

	// initErr is reported by every call when an option could not be applied.
	initErr error

	// === Transport ===

	// Transport replaces the built *http.Transport.
	Transport http.RoundTripper

	// MockTransport takes precedence over Transport; used in tests.
	MockTransport *MockTransport

	TLSConfig *tls.Config

	// === Engine ===

	Observers observers

	// RetryBackOff creates a fresh pacing policy per call. Nil retries immediately.
	RetryBackOff func() backoff.BackOff

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	BreakerConfig *BreakerConfig
	RateLimit     *RateLimitConfig

	// === Logging ===

	Logger zerolog.Logger
	Debug  bool

	// === OpenTelemetry ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics
	Propagators    propagation.TextMapPropagator

	// NetworkTrace adds DNS, connect, TLS and first-byte events to attempt spans.
	NetworkTrace bool

	// ServiceName is added as "http.client.name" on spans and metrics and
	// names the circuit breaker.
	ServiceName string
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Logger:         zerolog.New(os.Stderr).With().Timestamp().Logger(),
		NetworkTrace:   true,
		Propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil on failure; every record method is nil-safe.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// dialer returns a net.Dialer from the transport configuration.
func (cfg *internalConfig) dialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   cfg.httpConfig.DialTimeout,
		KeepAlive: cfg.httpConfig.KeepAlive,
	}
}

// buildTransport creates an http.Transport from the configuration.
// Environment proxies are not consulted; forward proxying is driven by
// Options.Proxy so the engine controls the absolute-form request line.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	return &http.Transport{
		DialContext:           cfg.dialer().DialContext,
		MaxIdleConns:          hc.MaxIdleConns,
		MaxIdleConnsPerHost:   hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       hc.MaxConnsPerHost,
		IdleConnTimeout:       hc.IdleConnTimeout,
		TLSHandshakeTimeout:   hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: hc.ResponseHeaderTimeout,
		DisableKeepAlives:     hc.DisableKeepAlives,
		DisableCompression:    hc.DisableCompression,
		TLSClientConfig:       cfg.TLSConfig,
		ForceAttemptHTTP2:     true,
	}
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Client Configuration
// =============================================================================

// Option configures the Client.
type Option func(*internalConfig)

// WithConfig sets the shared transport configuration.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithDefaults sets instance-level request options, merged over any
// defaults given earlier (for example by WithEndpoint). Every call merges its
// own Options over these; call values win field by field and headers merge
// per key.
//
// Example:
//
//	client := httpclient.New(httpclient.WithDefaults(httpclient.Options{
//	    Protocol: "https",
//	    Hostname: "api.example.com",
//	    Headers:  http.Header{"Authorization": {"Bearer " + token}},
//	    MaxRetryCount: httpclient.Int(1),
//	}))
func WithDefaults(o Options) Option {
	return func(cfg *internalConfig) {
		expanded, err := expandURL(o)
		if err != nil {
			cfg.initErr = err
			return
		}
		cfg.defaults = mergeOptions(cfg.defaults, expanded)
	}
}

// WithEndpoint sets the default destination from a literal URL.
//
//	client := httpclient.New(httpclient.WithEndpoint("https://test.api.io/v1/tests"))
//	res, err := client.Get(ctx, httpclient.Options{})
func WithEndpoint(endpoint string) Option {
	return func(cfg *internalConfig) {
		parsed, err := ParseEndpoint(endpoint)
		if err != nil {
			cfg.initErr = err
			return
		}
		cfg.defaults = mergeOptions(cfg.defaults, parsed)
	}
}

// WithTransport replaces the built transport. Connection-shaping options
// (LocalAddress, Family, SocketPath, RejectUnauthorized) only apply when the
// transport is built by the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.Transport = rt
	}
}

// WithTLSConfig sets the TLS configuration of the built transport.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithObserver registers an Observer for lifecycle signals. May be given
// more than once; observers are notified in registration order.
func WithObserver(o Observer) Option {
	return func(cfg *internalConfig) {
		if o != nil {
			cfg.Observers = append(cfg.Observers, o)
		}
	}
}

// WithRetryBackOff paces retries with a backoff policy. The factory is
// invoked once per call. Returning backoff.Stop from NextBackOff ends the
// call with the error of the last attempt.
//
// Example:
//
//	client := httpclient.New(httpclient.WithRetryBackOff(func() backoff.BackOff {
//	    b := backoff.NewExponentialBackOff()
//	    b.InitialInterval = 100 * time.Millisecond
//	    return b
//	}))
func WithRetryBackOff(factory func() backoff.BackOff) Option {
	return func(cfg *internalConfig) {
		cfg.RetryBackOff = factory
	}
}

// WithRequestInterceptor adds an interceptor run on every physical attempt.
func WithRequestInterceptor(i RequestInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.RequestInterceptors = append(cfg.RequestInterceptors, i)
	}
}

// WithResponseInterceptor adds an interceptor run on every received response.
func WithResponseInterceptor(i ResponseInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.ResponseInterceptors = append(cfg.ResponseInterceptors, i)
	}
}

// WithBreakerConfig wraps the transport in a circuit breaker.
func WithBreakerConfig(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRateLimit applies client-side rate limiting to every physical attempt.
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimit = &rl
	}
}

// WithLogger sets the zerolog logger used for debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = l
	}
}

// WithDebug logs every attempt, response and state transition at debug level.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithServiceName sets an identifier for this client in traces and metrics.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithNetworkTrace toggles httptrace phase events (DNS, connect, TLS, first
// byte) on attempt spans. Enabled by default.
func WithNetworkTrace(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.NetworkTrace = enabled
	}
}

// WithPropagators sets the propagators used to inject trace context.
// Default: W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.Propagators = p
	}
}
