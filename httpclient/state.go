package httpclient

import (
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// AttemptState is the mutable record of one logical call.
//
// It is created when the call starts, threaded through every physical
// attempt, and discarded when the call settles. Observers and errors only
// ever see copies.
type AttemptState struct {
	// CallID identifies the logical call across attempts and log lines.
	CallID string

	// Tries counts physical attempts that were not redirects. It starts at 1
	// and grows by one per retry or failover.
	Tries int

	// Redirects is the ordered chain of redirect targets already followed.
	Redirects []*url.URL

	// FailoverIndex is the cursor into Alternates.
	FailoverIndex int

	// Alternates lists the failover hosts for this call, if any.
	Alternates []Alternate

	// Body is the encoded outbound payload, resent unchanged on every attempt.
	Body []byte

	// StatusCode and Header describe the most recent response.
	StatusCode int
	Header     http.Header
}

func newAttemptState() *AttemptState {
	return &AttemptState{
		CallID: uuid.NewString(),
		Tries:  1,
	}
}

// snapshot returns a copy safe to hand to observers and errors.
func (s *AttemptState) snapshot() *AttemptState {
	if s == nil {
		return nil
	}

	cp := *s
	cp.Redirects = make([]*url.URL, len(s.Redirects))
	for i, u := range s.Redirects {
		c := *u
		cp.Redirects[i] = &c
	}
	cp.Alternates = append([]Alternate(nil), s.Alternates...)
	cp.Body = append([]byte(nil), s.Body...)
	cp.Header = s.Header.Clone()
	return &cp
}
