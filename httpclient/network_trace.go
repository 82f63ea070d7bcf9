package httpclient

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Network phase events recorded on attempt spans.
const (
	eventDNSStart     = "dns.start"
	eventDNSDone      = "dns.done"
	eventConnectStart = "connect.start"
	eventConnectDone  = "connect.done"
	eventTLSStart     = "tls.start"
	eventTLSDone      = "tls.done"
	eventGotConn      = "got_conn"
	eventWroteRequest = "wrote_request"
	eventFirstByte    = "got_first_response_byte"
)

type phaseEvent struct {
	name  string
	at    time.Time
	attrs []attribute.KeyValue
}

// networkTrace collects the connection phases of one physical attempt.
// Dial callbacks may fire from several goroutines when racing addresses.
type networkTrace struct {
	mu     sync.Mutex
	events []phaseEvent
	marks  map[string]time.Time
}

func newNetworkTrace() *networkTrace {
	return &networkTrace{marks: make(map[string]time.Time)}
}

func (nt *networkTrace) mark(name string, attrs ...attribute.KeyValue) {
	now := time.Now()
	nt.mu.Lock()
	defer nt.mu.Unlock()
	nt.marks[name] = now
	nt.events = append(nt.events, phaseEvent{name: name, at: now, attrs: attrs})
}

// done records the end of a phase with its duration since start.
func (nt *networkTrace) done(name, start, durationKey string, attrs ...attribute.KeyValue) {
	now := time.Now()
	nt.mu.Lock()
	defer nt.mu.Unlock()
	if began, ok := nt.marks[start]; ok {
		attrs = append(attrs, attribute.Float64(durationKey, float64(now.Sub(began).Microseconds())/1000))
	}
	nt.marks[name] = now
	nt.events = append(nt.events, phaseEvent{name: name, at: now, attrs: attrs})
}

func (nt *networkTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			nt.mark(eventDNSStart, attribute.String("dns.host", info.Host))
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			addrs := make([]string, 0, len(info.Addrs))
			for _, a := range info.Addrs {
				addrs = append(addrs, a.String())
			}
			nt.done(eventDNSDone, eventDNSStart, "dns.duration_ms",
				attribute.StringSlice("dns.addresses", addrs))
		},
		ConnectStart: func(network, addr string) {
			nt.mark(eventConnectStart,
				attribute.String("network.transport", network),
				attribute.String("network.peer.address", addr),
			)
		},
		ConnectDone: func(_, _ string, err error) {
			nt.done(eventConnectDone, eventConnectStart, "connect.duration_ms",
				attribute.Bool("connect.failed", err != nil))
		},
		TLSHandshakeStart: func() {
			nt.mark(eventTLSStart)
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.done(eventTLSDone, eventTLSStart, "tls.duration_ms",
				attribute.String("tls.protocol", state.NegotiatedProtocol))
		},
		GotConn: func(info httptrace.GotConnInfo) {
			nt.mark(eventGotConn,
				attribute.Bool("connection.reused", info.Reused),
				attribute.Bool("connection.was_idle", info.WasIdle),
			)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			nt.mark(eventWroteRequest)
		},
		GotFirstResponseByte: func() {
			nt.done(eventFirstByte, eventWroteRequest, "ttfb_ms")
		},
	}
}

// addEvents copies the collected phases onto span, keeping their timestamps.
func (nt *networkTrace) addEvents(span trace.Span) {
	nt.mu.Lock()
	defer nt.mu.Unlock()
	for _, e := range nt.events {
		span.AddEvent(e.name, trace.WithTimestamp(e.at), trace.WithAttributes(e.attrs...))
	}
}
