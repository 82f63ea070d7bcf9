package httpclient

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	_ backoff.BackOff = (*LinearBackOff)(nil)
	_ backoff.BackOff = (*ConstantBackOffWithJitter)(nil)
)

// Pacing strategies understood by RetryPacing.
const (
	PacingNone        = "none"
	PacingConstant    = "constant"
	PacingLinear      = "linear"
	PacingExponential = "exponential"
)

// RetryPacing describes how long the engine waits between retries. How many
// retries happen is still decided by MaxRetryCount; pacing only spaces them.
//
// Example:
//
//	pacing := httpclient.RetryPacing{
//	    Strategy:        httpclient.PacingExponential,
//	    InitialInterval: 100 * time.Millisecond,
//	    MaxInterval:     5 * time.Second,
//	    JitterFactor:    0.5,
//	}
//	client := httpclient.New(httpclient.WithRetryPacing(pacing))
type RetryPacing struct {
	// Strategy is one of none, constant, linear or exponential.
	// Default: none (retry immediately)
	Strategy string `koanf:"strategy" validate:"omitempty,oneof=none constant linear exponential"`

	// InitialInterval is the first wait.
	InitialInterval time.Duration `koanf:"initialinterval" validate:"gte=0"`

	// Increment is added per retry by the linear strategy.
	Increment time.Duration `koanf:"increment" validate:"gte=0"`

	// Multiplier grows the exponential strategy.
	// Default: 2
	Multiplier float64 `koanf:"multiplier" validate:"gte=0"`

	// MaxInterval caps any single wait. Zero means uncapped.
	MaxInterval time.Duration `koanf:"maxinterval" validate:"gte=0"`

	// JitterFactor randomizes each wait by ±factor (0.0-1.0).
	JitterFactor float64 `koanf:"jitterfactor" validate:"gte=0,lte=1"`
}

// DefaultRetryPacing returns exponential pacing from 100ms up to 5s.
func DefaultRetryPacing() RetryPacing {
	return RetryPacing{
		Strategy:        PacingExponential,
		InitialInterval: 100 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     5 * time.Second,
		JitterFactor:    0.5,
	}
}

// Factory returns a backoff constructor for WithRetryBackOff, or nil for the
// none strategy.
func (p RetryPacing) Factory() (func() backoff.BackOff, error) {
	switch p.Strategy {
	case "", PacingNone:
		return nil, nil
	case PacingConstant:
		return func() backoff.BackOff {
			return &ConstantBackOffWithJitter{Interval: p.InitialInterval, JitterFactor: p.JitterFactor}
		}, nil
	case PacingLinear:
		return func() backoff.BackOff {
			return &LinearBackOff{
				InitialInterval: p.InitialInterval,
				Increment:       p.Increment,
				MaxInterval:     p.MaxInterval,
				JitterFactor:    p.JitterFactor,
			}
		}, nil
	case PacingExponential:
		return func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = p.InitialInterval
			b.RandomizationFactor = p.JitterFactor
			if p.Multiplier > 0 {
				b.Multiplier = p.Multiplier
			}
			if p.MaxInterval > 0 {
				b.MaxInterval = p.MaxInterval
			}
			b.Reset()
			return b
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown retry pacing strategy %q", ErrInvalidOptions, p.Strategy)
	}
}

// LinearBackOff grows the wait by a fixed increment per retry.
//
// With InitialInterval=1s, Increment=500ms and no jitter the waits are
// 1s, 1.5s, 2s, ... up to MaxInterval.
type LinearBackOff struct {
	InitialInterval time.Duration
	Increment       time.Duration

	// MaxInterval caps the wait. Zero means uncapped.
	MaxInterval time.Duration

	JitterFactor float64

	attempt int
}

// Reset implements backoff.BackOff.
func (b *LinearBackOff) Reset() {
	b.attempt = 0
}

// NextBackOff implements backoff.BackOff.
func (b *LinearBackOff) NextBackOff() time.Duration {
	interval := b.InitialInterval + time.Duration(b.attempt)*b.Increment
	if b.MaxInterval > 0 && interval > b.MaxInterval {
		interval = b.MaxInterval
	}
	b.attempt++
	return applyJitter(interval, b.JitterFactor)
}

// ConstantBackOffWithJitter waits about the same interval before every retry.
type ConstantBackOffWithJitter struct {
	Interval     time.Duration
	JitterFactor float64
}

// Reset implements backoff.BackOff.
func (b *ConstantBackOffWithJitter) Reset() {}

// NextBackOff implements backoff.BackOff.
func (b *ConstantBackOffWithJitter) NextBackOff() time.Duration {
	return applyJitter(b.Interval, b.JitterFactor)
}

// applyJitter spreads interval uniformly over [interval*(1-f), interval*(1+f)].
func applyJitter(interval time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 || interval <= 0 {
		return interval
	}
	jitterFactor = min(jitterFactor, 1)

	delta := float64(interval) * jitterFactor
	low := float64(interval) - delta

	//nolint:gosec // jitter does not need a cryptographic source
	return time.Duration(low + rand.Float64()*2*delta)
}

// WithRetryPacing paces retries with a RetryPacing description. An unknown
// strategy makes every call fail with ErrInvalidOptions.
func WithRetryPacing(p RetryPacing) Option {
	return func(cfg *internalConfig) {
		if err := validate.Struct(p); err != nil {
			cfg.initErr = fmt.Errorf("%w: %v", ErrInvalidOptions, err)
			return
		}
		factory, err := p.Factory()
		if err != nil {
			cfg.initErr = err
			return
		}
		cfg.RetryBackOff = factory
	}
}
