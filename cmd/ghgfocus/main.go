// Command ghgfocus syncs activity data, aggregates a GHG Protocol inventory
// and renders disclosure reports and tags.
package main

import (
	"errors"
	"os"

	"github.com/rshade/ghgfocus/internal/cli"
	"github.com/rshade/ghgfocus/pkg/version"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
)

func run() error {
	root := cli.NewRootCmd(version.GetVersion())
	return root.Execute()
}

// exitCode maps a command error to the process exit status. Tag validation
// failures get their own code so scripts can tell them from runtime errors.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cli.ErrTagValidation):
		return exitValidation
	default:
		return exitError
	}
}

func main() {
	os.Exit(exitCode(run()))
}
