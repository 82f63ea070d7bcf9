package config

import (
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/brozeph/reqlib/httpclient"
)

// ClientOptions translates cfg into httpclient options. Callers append their
// own options (logger, observers, interceptors) after these.
func (cfg *Config) ClientOptions() []httpclient.Option {
	opts := []httpclient.Option{
		httpclient.WithConfig(cfg.Client.Transport),
		httpclient.WithDefaults(cfg.Defaults),
		httpclient.WithDebug(cfg.Client.Debug),
	}

	if cfg.Client.ServiceName != "" {
		opts = append(opts, httpclient.WithServiceName(cfg.Client.ServiceName))
	}

	if cfg.Retry.Strategy != "" && cfg.Retry.Strategy != httpclient.PacingNone {
		opts = append(opts, httpclient.WithRetryPacing(cfg.Retry))
	}

	if cfg.Breaker.Enabled {
		opts = append(opts, httpclient.WithBreakerConfig(cfg.breakerConfig()))
	}

	if cfg.RateLimit.Enabled {
		opts = append(opts, httpclient.WithRateLimit(cfg.RateLimit.RateLimitConfig))
	}

	return opts
}

func (cfg *Config) breakerConfig() httpclient.BreakerConfig {
	bc := httpclient.DefaultBreakerConfig()
	b := cfg.Breaker

	bc.MaxRequests = b.MaxRequests
	bc.Interval = b.Interval
	bc.Timeout = b.Timeout
	bc.FailureThreshold = b.FailureThreshold
	bc.FailureRatio = b.FailureRatio
	bc.ConsecutiveFailures = b.ConsecutiveFailures

	if b.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: b.RedisAddr})
		bc.Store = httpclient.NewRedisStore(rdb)
	}
	return bc
}

// Logger builds the zerolog logger described by the log section.
func (cfg *Config) Logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Client.Debug && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if cfg.Log.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
