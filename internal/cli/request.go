package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brozeph/reqlib/config"
	"github.com/brozeph/reqlib/httpclient"
)

// runRequest loads configuration, builds a client and issues one call.
func runRequest(cmd *cobra.Command, method, target string, body []byte, extra []httpclient.Option) error {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	verbose, _ := flags.GetBool("verbose")
	if verbose {
		cfg.Client.Debug = true
		cfg.Log.Pretty = true
	}

	opts, err := requestOptions(cmd, target)
	if err != nil {
		return err
	}

	clientOpts := append(cfg.ClientOptions(), httpclient.WithLogger(cfg.Logger()))
	client := httpclient.New(append(clientOpts, extra...)...)
	defer client.CloseIdleConnections()

	noColor, _ := flags.GetBool("no-color")
	extract, _ := flags.GetString("extract")
	p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), noColor)

	var payload any
	if body != nil {
		payload = body
	}

	res, err := client.Do(cmd.Context(), method, opts, payload)
	if err != nil {
		var callErr *httpclient.Error
		if errors.As(err, &callErr) {
			p.failure(callErr)
		}
		return err
	}

	return p.result(res, extract)
}

// requestOptions maps command flags onto call Options. Flags that were not
// given leave the config file and environment values in effect.
func requestOptions(cmd *cobra.Command, target string) (httpclient.Options, error) {
	flags := cmd.Flags()
	opts := httpclient.Options{URL: target}

	headers, _ := flags.GetStringArray("header")
	if len(headers) > 0 {
		opts.Headers = make(http.Header, len(headers))
		for _, h := range headers {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return opts, fmt.Errorf("invalid header %q, want 'Name: value'", h)
			}
			opts.Headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
		}
	}

	query, _ := flags.GetStringArray("query")
	if len(query) > 0 {
		q, err := parseQuery(query)
		if err != nil {
			return opts, err
		}
		opts.Query = q
	}

	if hosts, _ := flags.GetStringArray("host"); len(hosts) > 0 {
		opts.Hosts = hosts
	}
	if flags.Changed("timeout") {
		opts.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-retry") {
		n, _ := flags.GetInt("max-retry")
		opts.MaxRetryCount = httpclient.Int(n)
	}
	if flags.Changed("max-redirect") {
		n, _ := flags.GetInt("max-redirect")
		opts.MaxRedirectCount = httpclient.Int(n)
	}
	opts.Proxy, _ = flags.GetString("proxy")

	return opts, nil
}

// parseQuery turns key=value pairs into a query map. Repeated keys collect
// into a slice, which the engine joins with commas.
func parseQuery(pairs []string) (map[string]any, error) {
	values := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q, want key=value", pair)
		}
		values[key] = append(values[key], value)
	}

	query := make(map[string]any, len(values))
	for key, v := range values {
		if len(v) == 1 {
			query[key] = v[0]
		} else {
			query[key] = v
		}
	}
	return query, nil
}
