// Package resource maps CRUD verbs onto a URL template served through an
// httpclient.Client.
//
// A template names path parameters with a leading colon:
//
//	users, err := resource.New("https://api.example.com/v1/users/:id", client)
//	if err != nil {
//	    return err
//	}
//
//	res, err := users.Retrieve(ctx, resource.Params{"id": "42"}, nil)
//	_, err = users.Create(ctx, nil, map[string]any{"name": "Ada"})
//
// Parameters that are not given are removed from the path together with their
// leading slash, so the same template serves both the collection and the item.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/brozeph/reqlib/httpclient"
)

var (
	// ErrEmptyPattern is returned by New for an empty URL template.
	ErrEmptyPattern = errors.New("urlPattern argument is required")

	// ErrUnknownParameter is returned when a call names a parameter the
	// template does not declare.
	ErrUnknownParameter = errors.New("unknown URL parameter")
)

var reParameter = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)

// Params holds path parameter values by name.
type Params map[string]string

// Resource issues calls against one URL template. It is safe for concurrent
// use when the underlying Client is.
type Resource struct {
	client     *httpclient.Client
	base       httpclient.Options
	path       string
	rawQuery   string
	parameters []string
}

// New parses pattern and binds it to client.
func New(pattern string, client *httpclient.Client) (*Resource, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, ErrEmptyPattern
	}
	if client == nil {
		return nil, errors.New("resource: nil client")
	}

	base, err := httpclient.ParseEndpoint(pattern)
	if err != nil {
		return nil, fmt.Errorf("parse url pattern: %w", err)
	}

	path, rawQuery, _ := strings.Cut(base.Path, "?")
	base.Path = ""

	r := &Resource{
		client:   client,
		base:     base,
		path:     path,
		rawQuery: rawQuery,
	}
	for _, m := range reParameter.FindAllStringSubmatch(path, -1) {
		r.parameters = append(r.parameters, m[1])
	}
	return r, nil
}

// Parameters returns the parameter names declared by the template, in order.
func (r *Resource) Parameters() []string {
	return append([]string(nil), r.parameters...)
}

// Path expands the template path with params.
func (r *Resource) Path(params Params) (string, error) {
	for name := range params {
		if !slices.Contains(r.parameters, name) {
			return "", fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
	}

	path := reParameter.ReplaceAllStringFunc(r.path, func(token string) string {
		if v, ok := params[token[1:]]; ok && v != "" {
			return url.PathEscape(v)
		}
		return ""
	})

	// drop the separators of omitted parameters
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		path = "/"
	}

	if r.rawQuery != "" {
		path += "?" + r.rawQuery
	}
	return path, nil
}

// Create issues a POST with body.
func (r *Resource) Create(ctx context.Context, params Params, body any) (*httpclient.Result, error) {
	return r.do(ctx, http.MethodPost, params, nil, body)
}

// Retrieve issues a GET, with query appended to the path.
func (r *Resource) Retrieve(ctx context.Context, params Params, query map[string]any) (*httpclient.Result, error) {
	return r.do(ctx, http.MethodGet, params, query, nil)
}

// Update issues a PUT with body.
func (r *Resource) Update(ctx context.Context, params Params, body any) (*httpclient.Result, error) {
	return r.do(ctx, http.MethodPut, params, nil, body)
}

// Delete issues a DELETE, with query appended to the path.
func (r *Resource) Delete(ctx context.Context, params Params, query map[string]any) (*httpclient.Result, error) {
	return r.do(ctx, http.MethodDelete, params, query, nil)
}

func (r *Resource) do(
	ctx context.Context,
	method string,
	params Params,
	query map[string]any,
	body any,
) (*httpclient.Result, error) {
	path, err := r.Path(params)
	if err != nil {
		return nil, err
	}

	opts := r.base
	opts.Path = path
	opts.Query = query
	return r.client.Do(ctx, method, opts, body)
}
