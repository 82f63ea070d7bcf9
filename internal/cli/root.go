package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brozeph/reqlib/httpclient"
)

var version = "0.1.0"

// NewRootCmd builds the reqlib command tree. extra options are appended to
// every client the commands build, after the ones derived from config.
func NewRootCmd(extra ...httpclient.Option) *cobra.Command {
	root := &cobra.Command{
		Use:     "reqlib",
		Short:   "Issue HTTP calls with retries, redirects and host failover",
		Version: version,
		Long: `reqlib sends a single logical HTTP call and prints the resolved body.

Redirects, retries on 5xx and transport errors, and failover across
alternate hosts are handled by the engine; the flags below tune them.
Settings are read from an optional YAML file (--config) and REQLIB_*
environment variables.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.StringArrayP("header", "H", nil, "Header to send as 'Name: value' (repeatable)")
	flags.StringArrayP("query", "q", nil, "Query parameter as key=value (repeatable)")
	flags.StringArray("host", nil, "Failover host, replacing the URL host (repeatable)")
	flags.DurationP("timeout", "t", 60*time.Second, "Per-attempt timeout")
	flags.Int("max-retry", 3, "Maximum retries after the first attempt")
	flags.Int("max-redirect", 5, "Maximum redirects to follow")
	flags.String("proxy", "", "Forward proxy URL")
	flags.StringP("extract", "e", "", "Print only the value at this JSON path (gjson syntax)")
	flags.BoolP("verbose", "v", false, "Log every attempt to stderr")
	flags.Bool("no-color", false, "Disable colored output")

	for _, verb := range []verb{
		{name: "get", method: "GET"},
		{name: "head", method: "HEAD"},
		{name: "delete", method: "DELETE"},
		{name: "post", method: "POST", body: true},
		{name: "put", method: "PUT", body: true},
		{name: "patch", method: "PATCH", body: true},
	} {
		root.AddCommand(newVerbCmd(verb, extra))
	}

	return root
}

// Execute runs the root command until it completes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
