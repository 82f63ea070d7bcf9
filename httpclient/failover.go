package httpclient

import "slices"

// Failover codes: only these transport errors move the call to the next host.
const (
	CodeConnRefused = "ECONNREFUSED"
	CodeConnReset   = "ECONNRESET"
	CodeNotFound    = "ENOTFOUND"
)

var failoverCodes = []string{CodeConnRefused, CodeConnReset, CodeNotFound}

// AlternateField records which destination field an alternate came from.
type AlternateField string

const (
	AlternateHost     AlternateField = "host"
	AlternateHostname AlternateField = "hostname"
)

// Alternate is one failover destination.
type Alternate struct {
	Field AlternateField
	Value string
}

// failover holds the ordered alternates of one call and a cursor into them.
type failover struct {
	alternates []Alternate
	index      int
	port       int // explicit port from the call, kept across alternates
}

// newFailover consumes the alternates from cfg (so later attempts do not
// rebuild them) and applies the first one.
func newFailover(cfg *RequestConfig) *failover {
	f := &failover{port: cfg.Port}
	for _, v := range cfg.hostnames {
		f.alternates = append(f.alternates, Alternate{Field: AlternateHostname, Value: v})
	}
	for _, v := range cfg.hosts {
		f.alternates = append(f.alternates, Alternate{Field: AlternateHost, Value: v})
	}
	cfg.hosts, cfg.hostnames = nil, nil

	if len(f.alternates) > 0 {
		f.apply(cfg)
	}
	return f
}

func (f *failover) apply(cfg *RequestConfig) {
	alt := f.alternates[f.index]
	cfg.Host, cfg.Hostname, cfg.Port = "", "", f.port
	switch alt.Field {
	case AlternateHost:
		cfg.Host = alt.Value
	default:
		cfg.Hostname = alt.Value
	}
}

// eligible reports whether a transport error with code may fail over. Each
// alternate gets one turn; after that the retry policy takes over on the
// current host.
func (f *failover) eligible(code string, tries int) bool {
	return len(f.alternates) > 0 &&
		tries < len(f.alternates) &&
		slices.Contains(failoverCodes, code)
}

// advance moves to the next alternate, wrapping round-robin, and rewrites cfg.
func (f *failover) advance(cfg *RequestConfig) Alternate {
	f.index = (f.index + 1) % len(f.alternates)
	f.apply(cfg)
	return f.alternates[f.index]
}
