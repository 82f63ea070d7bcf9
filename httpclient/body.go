package httpclient

import (
	"context"
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// streamBody wraps a response body handed back as a stream. The attempt
// context stays alive while the caller reads; closing the body (or reading
// to EOF) releases it and ends the call span.
type streamBody struct {
	span   trace.Span
	body   io.ReadCloser
	cancel context.CancelFunc
	read   atomic.Int64
	done   atomic.Bool

	// onDone is called with the total bytes read.
	onDone func(bytesRead int64)
}

func newStreamBody(
	span trace.Span,
	body io.ReadCloser,
	cancel context.CancelFunc,
	onDone func(bytesRead int64),
) io.ReadCloser {
	return &streamBody{
		span:   span,
		body:   body,
		cancel: cancel,
		onDone: onDone,
	}
}

// Read reads from the underlying body, tracking bytes and errors.
func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	s.read.Add(int64(n))

	switch err {
	case nil:
	case io.EOF:
		s.finish()
	default:
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}

// Close closes the underlying body and releases the attempt.
func (s *streamBody) Close() error {
	err := s.body.Close()
	s.finish()
	s.cancel()
	return err
}

func (s *streamBody) finish() {
	if !s.done.CompareAndSwap(false, true) {
		return
	}
	n := s.read.Load()
	if s.onDone != nil {
		s.onDone(n)
	}
	s.span.SetAttributes(attribute.Int64("http.response.body.size", n))
	s.span.End()
}
