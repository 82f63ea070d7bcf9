package config

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brozeph/reqlib/httpclient"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reqlib.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, PresetDefault, cfg.Client.Preset)
	assert.Equal(t, httpclient.DefaultConfig(), cfg.Client.Transport)
	assert.Equal(t, httpclient.PacingNone, cfg.Retry.Strategy)
	assert.False(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, 10*time.Second, cfg.Breaker.Timeout)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 100, cfg.RateLimit.RequestsPerSecond, 0)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Nil(t, cfg.Defaults.MaxRetryCount)
	assert.Len(t, cfg.ClientOptions(), 3)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
client:
  servicename: billing
  preset: lowlatency
  transport:
    dialtimeout: 750ms
defaults:
  url: https://api.example.com/v1
  maxretrycount: 2
  timeout: 10s
  headers:
    Accept: [application/json]
  query:
    format: json
retry:
  strategy: linear
  initialinterval: 100ms
  increment: 50ms
breaker:
  enabled: true
  consecutivefailures: 3
ratelimit:
  enabled: true
  requestspersecond: 20
  burst: 4
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "billing", cfg.Client.ServiceName)
	want := httpclient.LowLatencyConfig()
	want.DialTimeout = 750 * time.Millisecond
	assert.Equal(t, want, cfg.Client.Transport)

	assert.Equal(t, "https://api.example.com/v1", cfg.Defaults.URL)
	require.NotNil(t, cfg.Defaults.MaxRetryCount)
	assert.Equal(t, 2, *cfg.Defaults.MaxRetryCount)
	assert.Equal(t, 10*time.Second, cfg.Defaults.Timeout)
	assert.Equal(t, []string{"application/json"}, cfg.Defaults.Headers["Accept"])
	assert.Equal(t, "json", cfg.Defaults.Query["format"])

	assert.Equal(t, httpclient.PacingLinear, cfg.Retry.Strategy)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.Increment)

	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, uint32(3), cfg.Breaker.ConsecutiveFailures)
	assert.Equal(t, 10*time.Second, cfg.Breaker.Interval, "unset keys keep defaults")

	assert.True(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 20, cfg.RateLimit.RequestsPerSecond, 0)
	assert.Equal(t, 4, cfg.RateLimit.Burst)

	assert.Equal(t, zerolog.DebugLevel, cfg.Logger().GetLevel())
	assert.Len(t, cfg.ClientOptions(), 7)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, `
defaults:
  maxretrycount: 2
log:
  level: warn
`)
	t.Setenv("REQLIB_DEFAULTS_MAXRETRYCOUNT", "5")
	t.Setenv("REQLIB_LOG_LEVEL", "error")
	t.Setenv("REQLIB_CLIENT_SERVICENAME", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Defaults.MaxRetryCount)
	assert.Equal(t, 5, *cfg.Defaults.MaxRetryCount)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "from-env", cfg.Client.ServiceName)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "given unknown log level, then fails", content: "log:\n  level: loud\n"},
		{name: "given unknown preset, then fails", content: "client:\n  preset: turbo\n"},
		{name: "given unknown retry strategy, then fails", content: "retry:\n  strategy: fibonacci\n"},
		{name: "given out of range port, then fails", content: "defaults:\n  port: 70000\n"},
		{name: "given bad family, then fails", content: "defaults:\n  family: 5\n"},
		{name: "given breaker ratio above one, then fails", content: "breaker:\n  failureratio: 1.5\n"},
		{name: "given bad redis address, then fails", content: "breaker:\n  redisaddr: localhost\n"},
		{
			name:    "given rate limit enabled without rate, then fails",
			content: "ratelimit:\n  enabled: true\n  requestspersecond: 0\n",
		},
		{name: "given malformed yaml, then fails", content: "defaults: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing)
	assert.Error(t, err)

	cfg, err := LoadDefault(missing)
	require.NoError(t, err)
	assert.Equal(t, PresetDefault, cfg.Client.Preset)
}

func TestConfig_Logger(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zerolog.Level
	}{
		{name: "given info, then info", cfg: Config{Log: LogConfig{Level: "info"}}, want: zerolog.InfoLevel},
		{name: "given upper case level, then parsed", cfg: Config{Log: LogConfig{Level: "WARN"}}, want: zerolog.WarnLevel},
		{name: "given unparsable level, then info", cfg: Config{Log: LogConfig{Level: "loud"}}, want: zerolog.InfoLevel},
		{
			name: "given client debug, then at least debug",
			cfg:  Config{Client: ClientConfig{Debug: true}, Log: LogConfig{Level: "error"}},
			want: zerolog.DebugLevel,
		},
		{
			name: "given trace with debug, then keeps trace",
			cfg:  Config{Client: ClientConfig{Debug: true}, Log: LogConfig{Level: "trace"}},
			want: zerolog.TraceLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Logger().GetLevel())
		})
	}
}

func TestConfig_ClientOptions(t *testing.T) {
	path := writeConfig(t, `
defaults:
  url: http://api.test.io/v1/items
  maxretrycount: 1
  headers:
    X-Tenant: [acme]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	mock := httpclient.NewMockTransport().
		StubResponse(http.StatusServiceUnavailable, "", "Content-Type", "text/plain")
	opts := append(cfg.ClientOptions(), httpclient.WithMockTransport(mock), httpclient.WithLogger(zerolog.Nop()))
	client := httpclient.New(opts...)

	_, err = client.Get(context.Background(), httpclient.Options{})

	assert.ErrorIs(t, err, httpclient.ErrHTTPStatus)
	assert.Equal(t, 2, mock.RequestCount(), "one retry from config")
	assert.Equal(t, "/v1/items", mock.LastRequest().URL.Path)
	assert.Equal(t, "acme", mock.LastRequest().Header.Get("X-Tenant"))
}

func TestConfig_BreakerWithRedis(t *testing.T) {
	cfg := &Config{Breaker: BreakerConfig{
		Enabled:             true,
		ConsecutiveFailures: 2,
		RedisAddr:           "localhost:6379",
	}}

	bc := cfg.breakerConfig()

	assert.Equal(t, uint32(2), bc.ConsecutiveFailures)
	assert.NotNil(t, bc.Store)
	assert.NotNil(t, bc.Classifier)
}
