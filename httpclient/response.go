package httpclient

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
)

// ResultKind tells how a call resolved.
type ResultKind int

const (
	// ResultDecoded means the body was buffered and decoded into Body.
	ResultDecoded ResultKind = iota

	// ResultStream means the body is handed back untouched in Stream.
	ResultStream
)

func (k ResultKind) String() string {
	if k == ResultStream {
		return "stream"
	}
	return "decoded"
}

// Result is the single value a successful call resolves to.
//
// For textual content types the body is buffered: Body holds the decoded JSON
// value (map[string]any, []any, float64, ...) or a string, and Raw the bytes.
// For any other declared content type the live body is returned in Stream;
// the caller owns it and must close it.
//
// Example usage:
//
//	res, err := client.Get(ctx, httpclient.Options{URL: "https://api.example.com/users/1"})
//	if err != nil {
//	    return err
//	}
//
//	var user User
//	if err := res.Decode(&user); err != nil {
//	    return err
//	}
type Result struct {
	Kind ResultKind

	// Body is the decoded value for ResultDecoded.
	Body any

	// Raw is the buffered body for ResultDecoded.
	Raw []byte

	// Stream is the open body for ResultStream.
	Stream io.ReadCloser

	StatusCode int
	Header     http.Header

	// Config is the configuration of the final attempt, after redirects
	// and failover.
	Config *RequestConfig

	// State is the final attempt state (tries, redirect chain, ...).
	State *AttemptState
}

// ErrNotBuffered is returned by Decode and String on a stream result.
var ErrNotBuffered = errors.New("result body is a stream")

// String returns the buffered body as text.
func (r *Result) String() string {
	if r.Kind == ResultStream {
		return ""
	}
	return string(r.Raw)
}

// Decode unmarshals the buffered body into v, as XML when the content type
// says so and as JSON otherwise.
func (r *Result) Decode(v any) error {
	if r.Kind == ResultStream {
		return ErrNotBuffered
	}
	if len(r.Raw) == 0 {
		return nil
	}

	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/xml") || strings.Contains(ct, "text/xml") {
		return xml.Unmarshal(r.Raw, v)
	}
	return json.Unmarshal(r.Raw, v)
}

// IsSuccess returns true if the final status code is 2xx.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
