// Package main is the entry point for the uberpack CLI.
package main

import (
	"os"

	"github.com/uberpack/uberpack/pkg/cli"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
