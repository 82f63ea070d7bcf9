package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/net/html/charset"
)

var (
	reContentTypeJSON = regexp.MustCompile(`(?i)json`)
	reContentTypeText = regexp.MustCompile(`(?i)json|xml|yaml|html|text|jwt`)
)

const defaultContentType = "application/json"

// responseKind tells the engine whether a response is buffered or streamed.
type responseKind int

const (
	kindDecode responseKind = iota
	kindStream
)

// encodeBody serializes an outbound payload and sets framing headers.
//
// Content-Type defaults to application/json. Byte slices, strings and
// readers pass through untouched; other values are JSON-encoded when the
// content type is JSON, and otherwise rendered with their String method.
func encodeBody(body any, header http.Header) ([]byte, error) {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
		header.Set("Content-Type", contentType)
	}

	var payload []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		payload = v
	case json.RawMessage:
		payload = v
	case string:
		payload = []byte(v)
	case io.Reader:
		b, err := io.ReadAll(v)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		payload = b
	default:
		if reContentTypeJSON.MatchString(contentType) {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			payload = b
		} else if s, ok := v.(fmt.Stringer); ok {
			payload = []byte(s.String())
		} else {
			payload = []byte(fmt.Sprint(v))
		}
	}

	if len(payload) > 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(payload)))
	}
	return payload, nil
}

// classifyResponse returns kindStream when a Content-Type is declared and it
// is not textual. A missing Content-Type is treated as text.
func classifyResponse(header http.Header) responseKind {
	ct := header.Get("Content-Type")
	if ct != "" && !reContentTypeText.MatchString(ct) {
		return kindStream
	}
	return kindDecode
}

// readBody buffers a response body, converting it to UTF-8 when the
// Content-Type declares another charset.
func readBody(body io.Reader, contentType string) ([]byte, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" && !isUTF8(cs) {
			r, err := charset.NewReaderLabel(cs, body)
			if err == nil {
				body = r
			}
		}
	}
	return io.ReadAll(body)
}

func isUTF8(label string) bool {
	switch label {
	case "utf-8", "UTF-8", "utf8", "UTF8":
		return true
	}
	return false
}

// decodeBody parses raw according to Content-Type: JSON types become a
// generic value (unless the status is 204 or the body is empty); everything
// else is returned as a string.
func decodeBody(raw []byte, contentType string, status int) (any, error) {
	if reContentTypeJSON.MatchString(contentType) &&
		status != http.StatusNoContent &&
		len(bytes.TrimSpace(raw)) > 0 {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return string(raw), nil
}
