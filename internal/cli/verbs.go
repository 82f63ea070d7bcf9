package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brozeph/reqlib/httpclient"
)

type verb struct {
	name   string
	method string
	body   bool
}

func newVerbCmd(v verb, extra []httpclient.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   v.name + " URL",
		Short: fmt.Sprintf("Make a %s request to the specified URL", v.method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			if v.body {
				data, _ := cmd.Flags().GetString("data")
				b, err := readData(data)
				if err != nil {
					return err
				}
				body = b
			}
			return runRequest(cmd, v.method, args[0], body, extra)
		},
	}

	if v.body {
		cmd.Flags().StringP("data", "d", "", "Request body, or @file to read it from a file")
	}
	return cmd
}

// readData returns the literal body, or the contents of the file named after @.
func readData(data string) ([]byte, error) {
	if path, ok := strings.CutPrefix(data, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read body file: %w", err)
		}
		return b, nil
	}
	if data == "" {
		return nil, nil
	}
	return []byte(data), nil
}
