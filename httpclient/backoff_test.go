package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPacing_Factory(t *testing.T) {
	tests := []struct {
		name    string
		pacing  RetryPacing
		wantNil bool
		wantErr error
		check   func(t *testing.T, b backoff.BackOff)
	}{
		{name: "given empty strategy, then no pacing", pacing: RetryPacing{}, wantNil: true},
		{name: "given none, then no pacing", pacing: RetryPacing{Strategy: PacingNone}, wantNil: true},
		{
			name:   "given constant, then same wait each time",
			pacing: RetryPacing{Strategy: PacingConstant, InitialInterval: 20 * time.Millisecond},
			check: func(t *testing.T, b backoff.BackOff) {
				assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
				assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
			},
		},
		{
			name: "given linear, then grows by increment up to the cap",
			pacing: RetryPacing{
				Strategy:        PacingLinear,
				InitialInterval: time.Second,
				Increment:       500 * time.Millisecond,
				MaxInterval:     1800 * time.Millisecond,
			},
			check: func(t *testing.T, b backoff.BackOff) {
				assert.Equal(t, time.Second, b.NextBackOff())
				assert.Equal(t, 1500*time.Millisecond, b.NextBackOff())
				assert.Equal(t, 1800*time.Millisecond, b.NextBackOff())
				b.Reset()
				assert.Equal(t, time.Second, b.NextBackOff())
			},
		},
		{
			name: "given exponential, then doubles without jitter",
			pacing: RetryPacing{
				Strategy:        PacingExponential,
				InitialInterval: 100 * time.Millisecond,
				Multiplier:      2,
				MaxInterval:     time.Second,
			},
			check: func(t *testing.T, b backoff.BackOff) {
				assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
				assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
				assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
			},
		},
		{
			name:    "given unknown strategy, then ErrInvalidOptions",
			pacing:  RetryPacing{Strategy: "fibonacci"},
			wantErr: ErrInvalidOptions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory, err := tt.pacing.Factory()

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, factory)
				return
			}
			require.NotNil(t, factory)
			tt.check(t, factory())
		})
	}
}

func TestApplyJitter(t *testing.T) {
	assert.Equal(t, time.Second, applyJitter(time.Second, 0))
	assert.Equal(t, time.Duration(0), applyJitter(0, 0.5))

	for range 100 {
		d := applyJitter(time.Second, 0.5)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestDefaultRetryPacing(t *testing.T) {
	p := DefaultRetryPacing()
	assert.Equal(t, PacingExponential, p.Strategy)
	assert.NoError(t, validate.Struct(p))
}

func TestWithRetryPacing_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		pacing RetryPacing
	}{
		{name: "given unknown strategy, then calls fail", pacing: RetryPacing{Strategy: "random"}},
		{name: "given jitter above one, then calls fail", pacing: RetryPacing{Strategy: PacingConstant, JitterFactor: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockTransport().StubResponse(http.StatusOK, "")
			client := newTestClient(mock, WithRetryPacing(tt.pacing))

			_, err := client.Get(context.Background(), Options{URL: "http://test.api.io/"})

			assert.ErrorIs(t, err, ErrInvalidOptions)
			assert.Equal(t, 0, mock.RequestCount())
		})
	}
}

func TestClient_RetryBackOffStop(t *testing.T) {
	mock := NewMockTransport().StubResponse(http.StatusBadGateway, "", "Content-Type", "text/plain")
	client := newTestClient(mock, WithRetryBackOff(func() backoff.BackOff { return &backoff.StopBackOff{} }))

	_, err := client.Get(context.Background(), Options{URL: "http://test.api.io/", MaxRetryCount: Int(3)})

	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.ErrorIs(t, err, errRetryStopped)
	assert.Equal(t, 1, mock.RequestCount())
}
