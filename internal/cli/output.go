package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/brozeph/reqlib/httpclient"
)

// printer writes the response body to out and status lines to errOut, so
// the body can be piped on its own.
type printer struct {
	out    io.Writer
	errOut io.Writer

	success  *color.Color
	redirect *color.Color
	client   *color.Color
	server   *color.Color
	detail   *color.Color
}

func newPrinter(out, errOut io.Writer, noColor bool) *printer {
	p := &printer{
		out:      out,
		errOut:   errOut,
		success:  color.New(color.FgGreen, color.Bold),
		redirect: color.New(color.FgCyan, color.Bold),
		client:   color.New(color.FgYellow, color.Bold),
		server:   color.New(color.FgRed, color.Bold),
		detail:   color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.success, p.redirect, p.client, p.server, p.detail} {
			c.DisableColor()
		}
	}
	return p
}

func (p *printer) status(code int, state *httpclient.AttemptState) {
	c := p.success
	switch {
	case code >= 500:
		c = p.server
	case code >= 400:
		c = p.client
	case code >= 300:
		c = p.redirect
	}

	line := c.Sprintf("HTTP %d %s", code, http.StatusText(code))
	if state != nil {
		line += p.detail.Sprintf(" (tries %d, redirects %d)", state.Tries, len(state.Redirects))
	}
	fmt.Fprintln(p.errOut, line)
}

// result prints a resolved call. extract selects one JSON value with gjson.
func (p *printer) result(res *httpclient.Result, extract string) error {
	p.status(res.StatusCode, res.State)

	if res.Kind == httpclient.ResultStream {
		defer res.Stream.Close()
		if extract != "" {
			return fmt.Errorf("cannot extract %q from a %s stream", extract, res.Header.Get("Content-Type"))
		}
		_, err := io.Copy(p.out, res.Stream)
		return err
	}

	if extract != "" {
		v := gjson.GetBytes(res.Raw, extract)
		if !v.Exists() {
			return fmt.Errorf("no value at %q", extract)
		}
		fmt.Fprintln(p.out, v.String())
		return nil
	}

	p.body(res.Raw, res.Header.Get("Content-Type"))
	return nil
}

// failure prints whatever response came with a rejected call.
func (p *printer) failure(callErr *httpclient.Error) {
	if callErr.Stream != nil {
		_ = callErr.Stream.Close()
	}
	if callErr.StatusCode == 0 {
		return
	}
	p.status(callErr.StatusCode, callErr.State)
	p.body(callErr.Raw, callErr.Header.Get("Content-Type"))
}

func (p *printer) body(raw []byte, contentType string) {
	if len(raw) == 0 {
		return
	}

	if strings.Contains(contentType, "json") {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err == nil {
			raw = buf.Bytes()
		}
	}

	_, _ = p.out.Write(raw)
	if raw[len(raw)-1] != '\n' {
		fmt.Fprintln(p.out)
	}
}
