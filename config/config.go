// Package config loads reqlib client settings from defaults, an optional
// YAML file and the environment, in that order of increasing priority.
//
// Example config.yaml:
//
//	client:
//	  servicename: billing
//	  preset: lowlatency
//	defaults:
//	  url: https://api.example.com/v1
//	  maxretrycount: 2
//	  timeout: 10s
//	  headers:
//	    Accept: application/json
//	retry:
//	  strategy: exponential
//	  initialinterval: 100ms
//	breaker:
//	  enabled: true
//	  redisaddr: localhost:6379
//
// Environment variables use the REQLIB_ prefix and underscores for nesting,
// for example REQLIB_DEFAULTS_MAXRETRYCOUNT=5.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/brozeph/reqlib/httpclient"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "REQLIB_"

// Transport presets understood by ClientConfig.Preset.
const (
	PresetDefault        = "default"
	PresetHighThroughput = "highthroughput"
	PresetLowLatency     = "lowlatency"
)

var validate = validator.New()

// Config is the complete client configuration.
type Config struct {
	Client    ClientConfig           `koanf:"client"`
	Defaults  httpclient.Options     `koanf:"defaults"`
	Retry     httpclient.RetryPacing `koanf:"retry"`
	Breaker   BreakerConfig          `koanf:"breaker"`
	RateLimit RateLimitConfig        `koanf:"ratelimit"`
	Log       LogConfig              `koanf:"log"`
}

// ClientConfig holds instance-level settings of the Client.
type ClientConfig struct {
	ServiceName string `koanf:"servicename"`
	Debug       bool   `koanf:"debug"`

	// Preset selects the transport tuning. Keys under client.transport
	// override single fields of the preset.
	Preset    string            `koanf:"preset" validate:"omitempty,oneof=default highthroughput lowlatency"`
	Transport httpclient.Config `koanf:"-"`
}

// BreakerConfig enables the circuit breaker. RedisAddr shares its state
// through Redis.
type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	MaxRequests         uint32        `koanf:"maxrequests"`
	Interval            time.Duration `koanf:"interval" validate:"gte=0"`
	Timeout             time.Duration `koanf:"timeout" validate:"gte=0"`
	FailureThreshold    uint32        `koanf:"failurethreshold"`
	FailureRatio        float64       `koanf:"failureratio" validate:"gte=0,lte=1"`
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	RedisAddr           string        `koanf:"redisaddr" validate:"omitempty,hostname_port"`
}

// RateLimitConfig enables client-side rate limiting.
type RateLimitConfig struct {
	httpclient.RateLimitConfig `koanf:",squash"`

	Enabled bool `koanf:"enabled"`
}

// LogConfig configures the zerolog logger built by the CLI.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Load reads configuration with this priority:
// 1. Environment variables with EnvPrefix (highest priority)
// 2. The YAML file at path, when path is not empty
// 3. Default values (lowest priority)
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Client.Transport = transportPreset(cfg.Client.Preset)
	if k.Exists("client.transport") {
		if err := k.Unmarshal("client.transport", &cfg.Client.Transport); err != nil {
			return nil, fmt.Errorf("failed to unmarshal client.transport: %w", err)
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// LoadDefault loads path when it exists and falls back to defaults and the
// environment otherwise.
func LoadDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return Load(path)
}

func transportPreset(name string) httpclient.Config {
	switch name {
	case PresetHighThroughput:
		return httpclient.HighThroughputConfig()
	case PresetLowLatency:
		return httpclient.LowLatencyConfig()
	default:
		return httpclient.DefaultConfig()
	}
}

// envKey converts REQLIB_DEFAULTS_MAXRETRYCOUNT to defaults.maxretrycount.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

func loadDefaults(k *koanf.Koanf) error {
	rl := httpclient.DefaultRateLimitConfig()
	bc := httpclient.DefaultBreakerConfig()

	defaults := map[string]any{
		"client.preset": PresetDefault,
		"client.debug":  false,

		"retry.strategy": httpclient.PacingNone,

		"breaker.enabled":             false,
		"breaker.maxrequests":         bc.MaxRequests,
		"breaker.interval":            bc.Interval.String(),
		"breaker.timeout":             bc.Timeout.String(),
		"breaker.failurethreshold":    bc.FailureThreshold,
		"breaker.failureratio":        bc.FailureRatio,
		"breaker.consecutivefailures": bc.ConsecutiveFailures,

		"ratelimit.enabled":           false,
		"ratelimit.requestspersecond": rl.RequestsPerSecond,
		"ratelimit.burst":             rl.Burst,
		"ratelimit.waitonlimit":       rl.WaitOnLimit,

		"log.level":  "info",
		"log.pretty": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Validate checks cfg, including the request defaults.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerSecond <= 0 {
		return errors.New("ratelimit: requestspersecond must be positive when enabled")
	}
	return nil
}
