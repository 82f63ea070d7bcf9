package main

import (
	"os"

	"github.com/brozeph/reqlib/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
