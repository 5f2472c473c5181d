// Package main is the entry point for the apolo CLI.
//
// apolo is the command-line client of the Apolo ML platform. It logs into
// a platform, selects a cluster, org and project, runs and inspects jobs,
// and moves data between the local machine, platform storage and buckets.
//
// For detailed usage information, run:
//
//	apolo --help
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/neuro-inc/apolo-cli/cmd/apolo/commands"
	"github.com/neuro-inc/apolo-cli/cmd/apolo/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().Execute()
	var exit *handlers.ExitError
	if err != nil && !errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(handlers.ExitCode(err))
}
