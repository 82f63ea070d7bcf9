package httpclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"
)

// Responder builds the response for a matched request.
type Responder func(req *http.Request) (*http.Response, error)

// MockTransport provides a configurable http.RoundTripper for testing.
// Stubs are matched in registration order; the first match wins.
//
//	mock := httpclient.NewMockTransport().
//	    StubHostError("a.example.com", &net.DNSError{Err: "no such host", Name: "a.example.com", IsNotFound: true}).
//	    StubHost("b.example.com", http.StatusOK, `{"ok":true}`, "Content-Type", "application/json")
//	client := httpclient.New(httpclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp Responder
	defaultErr  error
	requests    []*http.Request
	requestHook func(*http.Request)
}

type stub struct {
	matcher   func(*http.Request) bool
	responder Responder
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// MockResponse builds a response with the given status, body and header
// pairs ("Content-Type", "application/json", ...).
func MockResponse(statusCode int, body string, headerPairs ...string) *http.Response {
	header := make(http.Header)
	for i := 0; i+1 < len(headerPairs); i += 2 {
		header.Add(headerPairs[i], headerPairs[i+1])
	}
	return &http.Response{
		StatusCode:    statusCode,
		Status:        http.StatusText(statusCode),
		Body:          io.NopCloser(bytes.NewBufferString(body)),
		Header:        header,
		ContentLength: int64(len(body)),
	}
}

// StubResponse answers every unmatched request with the given response.
func (m *MockTransport) StubResponse(statusCode int, body string, headerPairs ...string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = Respond(statusCode, body, headerPairs...)
	return m
}

// StubError fails every unmatched request with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath answers requests for path.
func (m *MockTransport) StubPath(path string, statusCode int, body string, headerPairs ...string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body, headerPairs...)
}

// StubHost answers requests whose destination host (with or without port)
// is host.
func (m *MockTransport) StubHost(host string, statusCode int, body string, headerPairs ...string) *MockTransport {
	return m.StubFunc(hostMatcher(host), statusCode, body, headerPairs...)
}

// StubHostError fails requests to host with err.
func (m *MockTransport) StubHostError(host string, err error) *MockTransport {
	return m.StubFuncError(hostMatcher(host), err)
}

// StubFunc answers requests matching the predicate.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
	headerPairs ...string,
) *MockTransport {
	return m.StubResponder(matcher, Respond(statusCode, body, headerPairs...))
}

// StubFuncError fails requests matching the predicate with err.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	return m.StubResponder(matcher, func(*http.Request) (*http.Response, error) {
		return nil, err
	})
}

// StubResponder delegates matching requests to fn.
func (m *MockTransport) StubResponder(matcher func(*http.Request) bool, fn Responder) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, responder: fn})
	return m
}

// StubSequence answers successive requests with successive responders; the
// last one repeats once the sequence is exhausted.
func (m *MockTransport) StubSequence(responders ...Responder) *MockTransport {
	var (
		mu sync.Mutex
		n  int
	)
	return m.StubResponder(func(*http.Request) bool { return len(responders) > 0 },
		func(req *http.Request) (*http.Response, error) {
			mu.Lock()
			i := min(n, len(responders)-1)
			n++
			mu.Unlock()
			return responders[i](req)
		})
}

// Respond returns a Responder that answers with a fresh response each time.
func Respond(statusCode int, body string, headerPairs ...string) Responder {
	return func(*http.Request) (*http.Response, error) {
		return MockResponse(statusCode, body, headerPairs...), nil
	}
}

// Fail returns a Responder that always fails with err.
func Fail(err error) Responder {
	return func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}

// OnRequest sets a hook that is called for each request.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper. The request body is buffered so
// recorded requests can be inspected after the call.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	recorded := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		b, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		recorded.Body = io.NopCloser(bytes.NewReader(b))
		req.Body = io.NopCloser(bytes.NewReader(b))
	}

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.RLock()
	stubs := m.stubs
	defaultErr, defaultResp := m.defaultErr, m.defaultResp
	m.mu.RUnlock()

	for _, s := range stubs {
		if s.matcher(req) {
			resp, err := s.responder(req)
			if resp != nil {
				resp.Request = req
			}
			return resp, err
		}
	}

	if defaultErr != nil {
		return nil, defaultErr
	}
	if defaultResp != nil {
		resp, err := defaultResp(req)
		if resp != nil {
			resp.Request = req
		}
		return resp, err
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + displayURL(req))
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

func hostMatcher(host string) func(*http.Request) bool {
	return func(req *http.Request) bool {
		return req.URL.Host == host || req.URL.Hostname() == host
	}
}

// WithMockTransport routes every attempt through mock instead of the network.
func WithMockTransport(mock *MockTransport) Option {
	return func(cfg *internalConfig) {
		cfg.MockTransport = mock
	}
}
