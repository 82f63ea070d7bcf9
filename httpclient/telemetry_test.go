package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type telemetry struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newTelemetry() (*telemetry, []Option) {
	sr := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &telemetry{spans: sr, reader: reader}, []Option{
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
		WithServiceName("orders"),
	}
}

func (tm *telemetry) spansNamed(name string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, s := range tm.spans.Ended() {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

func (tm *telemetry) metric(t *testing.T, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, tm.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	return nil
}

func (tm *telemetry) counter(t *testing.T, name string) int64 {
	t.Helper()
	sum, ok := tm.metric(t, name).(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func eventNames(span sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(span.Events()))
	for _, e := range span.Events() {
		names = append(names, e.Name)
	}
	return names
}

func TestTelemetry_CallSpanAndAttemptSpans(t *testing.T) {
	tm, opts := newTelemetry()
	mock := NewMockTransport().StubSequence(
		Respond(http.StatusFound, "", "Location", "/next"),
		Respond(http.StatusServiceUnavailable, "", "Content-Type", "text/plain"),
		Respond(http.StatusOK, "ok", "Content-Type", "text/plain"),
	)
	client := newTestClient(mock, opts...)

	_, err := client.Get(context.Background(), Options{URL: "http://test.api.io/start"})
	require.NoError(t, err)

	calls := tm.spansNamed("HTTP call GET")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{eventRedirect, eventRetry}, eventNames(calls[0]))
	assert.Equal(t, codes.Unset, calls[0].Status().Code)

	attempts := tm.spansNamed("HTTP GET")
	require.Len(t, attempts, 3)
	for _, a := range attempts {
		assert.Equal(t, calls[0].SpanContext().TraceID(), a.SpanContext().TraceID())
		assert.Equal(t, calls[0].SpanContext().SpanID(), a.Parent().SpanID())
	}
	assert.Equal(t, codes.Error, attempts[1].Status().Code, "503 attempt is marked failed")

	assert.NotEmpty(t, mock.LastRequest().Header.Get("Traceparent"))

	assert.Equal(t, int64(1), tm.counter(t, "http.client.redirects"))
	assert.Equal(t, int64(1), tm.counter(t, "http.client.retry.attempts"))

	hist, ok := tm.metric(t, "http.client.call.duration").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestTelemetry_FailoverAndRejection(t *testing.T) {
	tm, opts := newTelemetry()
	mock := NewMockTransport().
		StubHostError("a.io", refusedError()).
		StubHost("b.io", http.StatusNotFound, "missing", "Content-Type", "text/plain")
	client := newTestClient(mock, opts...)

	_, err := client.Get(context.Background(), Options{Hostnames: []string{"a.io", "b.io"}})
	assert.ErrorIs(t, err, ErrHTTPStatus)

	calls := tm.spansNamed("HTTP call GET")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{eventFailover}, eventNames(calls[0]))
	assert.Equal(t, codes.Error, calls[0].Status().Code)

	attempts := tm.spansNamed("HTTP GET")
	require.Len(t, attempts, 2)
	assert.Equal(t, codes.Error, attempts[0].Status().Code)

	assert.Equal(t, int64(1), tm.counter(t, "http.client.failovers"))
	assert.Equal(t, int64(1), tm.counter(t, "http.client.request.error"))
}

func TestTelemetry_StreamEndsSpanOnClose(t *testing.T) {
	tm, opts := newTelemetry()
	mock := NewMockTransport().StubResponse(http.StatusOK, "binary", "Content-Type", "application/octet-stream")
	client := newTestClient(mock, opts...)

	res, err := client.Get(context.Background(), Options{URL: "http://test.api.io/file"})
	require.NoError(t, err)
	assert.Empty(t, tm.spansNamed("HTTP call GET"), "call span stays open while streaming")

	require.NoError(t, res.Stream.Close())

	assert.Len(t, tm.spansNamed("HTTP call GET"), 1)
}

func TestTelemetry_NetworkTraceEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	tests := []struct {
		name       string
		enabled    bool
		wantEvents []string
	}{
		{
			name:       "given network trace enabled, then attempt span carries connection phases",
			enabled:    true,
			wantEvents: []string{eventConnectStart, eventConnectDone, eventGotConn, eventWroteRequest, eventFirstByte},
		},
		{
			name:    "given network trace disabled, then attempt span has no phase events",
			enabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, opts := newTelemetry()
			client := New(append(opts, WithLogger(zerolog.Nop()), WithNetworkTrace(tt.enabled))...)

			_, err := client.Get(context.Background(), Options{URL: server.URL})
			require.NoError(t, err)

			attempts := tm.spansNamed("HTTP GET")
			require.Len(t, attempts, 1)
			names := eventNames(attempts[0])
			if len(tt.wantEvents) == 0 {
				assert.Empty(t, names)
				return
			}
			for _, want := range tt.wantEvents {
				assert.Contains(t, names, want)
			}
		})
	}
}
